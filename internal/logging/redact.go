package logging

import (
	"context"
	"log/slog"

	"forge/internal/security"
)

// redactingHandler wraps another slog.Handler and redacts secret-shaped
// substrings out of the message and every string attribute before they
// reach it — grounded on the teacher's tools.Executor, which runs a
// SecretRedactor over a command's captured output before it goes anywhere
// else. Verifier/agentic run output and Analyzer diagnoses both flow
// through Info/Debug/Warn calls, so this is the one seam that catches a
// leaked credential regardless of which call site logged it.
type redactingHandler struct {
	next     slog.Handler
	redactor *security.SecretRedactor
}

func newRedactingHandler(next slog.Handler) *redactingHandler {
	return &redactingHandler{next: next, redactor: security.NewSecretRedactor()}
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	record.Message = h.redactor.Redact(record.Message)

	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *redactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, h.redactor.Redact(a.Value.String()))
	}
	return a
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.next.WithAttrs(attrs)
	return &redactingHandler{next: next, redactor: h.redactor}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
