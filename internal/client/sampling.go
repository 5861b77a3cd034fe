package client

import (
	"strings"

	"forge/internal/model"
)

// SamplingProfile holds the per-category sampling defaults the spec fixes as
// contractual: reasoning models think more freely, coding models stay near-deterministic.
type SamplingProfile struct {
	Temperature float32
	// StripReasoningTrace removes <think>...</think> spans from the final string.
	StripReasoningTrace bool
}

// SamplingFor returns the sampling defaults for a role, keyed off the role's
// model category rather than the role itself — reviewer and coder share a category split
// but differ in temperature per the contract table.
func SamplingFor(role model.Role) SamplingProfile {
	switch role {
	case model.RolePlanner, model.RoleAnalyzer:
		// Planner/Analyzer draw from the reasoning category: higher temperature,
		// and their models are the ones that emit <think> spans worth stripping.
		return SamplingProfile{Temperature: 0.4, StripReasoningTrace: true}
	case model.RoleCoder:
		return SamplingProfile{Temperature: 0.15}
	case model.RoleReviewer:
		return SamplingProfile{Temperature: 0.3}
	case model.RoleAgentic, model.RoleGeneral:
		return SamplingProfile{Temperature: 0.6}
	case model.RoleClassifier:
		return SamplingProfile{Temperature: 0.2}
	default:
		return SamplingProfile{Temperature: 0.6}
	}
}

// stripReasoningTraces removes every <think>...</think> span (including malformed,
// unterminated spans) from s. Used as a stream-level filter ahead of the token channel;
// the raw, untouched stream stays available to callers that want it for debugging.
func stripReasoningTraces(s string) string {
	const open, close = "<think>", "</think>"
	var b strings.Builder
	rest := s
	for {
		i := strings.Index(rest, open)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		after := rest[i+len(open):]
		j := strings.Index(after, close)
		if j < 0 {
			// Unterminated trace: drop the rest, nothing recoverable follows it.
			break
		}
		rest = after[j+len(close):]
	}
	return b.String()
}
