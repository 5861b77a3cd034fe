package roleengine

import (
	"context"
	"testing"

	"forge/internal/client"
	"forge/internal/model"
)

type fakeResolver struct {
	spec model.Spec
	err  error
}

func (f *fakeResolver) Resolve(ctx context.Context, role model.Role, c model.Complexity, s model.Size) (model.Spec, error) {
	return f.spec, f.err
}

type fakeCaller struct {
	text string
	err  error
}

func (f *fakeCaller) Call(ctx context.Context, role model.Role, messages []client.Message, opts client.CallOptions) (*client.StreamingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan client.ResponseChunk, 1)
	done := make(chan struct{})
	ch <- client.ResponseChunk{Text: f.text, Done: true}
	close(ch)
	close(done)
	return &client.StreamingResponse{Chunks: ch, Done: done}, nil
}

func newTestEngine(text string) *Engine {
	return New(&fakeCaller{text: text}, &fakeResolver{spec: model.Spec{Name: "llama3.2:3b"}})
}

func TestExtractJSON_StripsSurroundingProseAndFences(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"a\": 1, \"b\": {\"c\": 2}}\n```\nHope that helps."
	raw, ok := extractJSON(text)
	if !ok {
		t.Fatalf("extractJSON found nothing")
	}
	if raw != `{"a": 1, "b": {"c": 2}}` {
		t.Errorf("raw = %q", raw)
	}
}

func TestExtractJSON_NoObjectReturnsFalse(t *testing.T) {
	if _, ok := extractJSON("no braces here"); ok {
		t.Errorf("expected no JSON object to be found")
	}
}

func TestConfigFor_ReturnsSystemPromptPerRole(t *testing.T) {
	cfg := ConfigFor(model.RoleCoder)
	if cfg.SystemPrompt != coderSystemPrompt {
		t.Errorf("ConfigFor(RoleCoder) returned the wrong prompt")
	}
}
