// Package roleengine wraps the Model Client with the four pipeline roles'
// stable system prompts, output schemas, and parsers — spec.md's "thin
// wrapper" contract, dispatched through one RoleConfig record per role
// rather than a string switch scattered across the orchestrator.
package roleengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"forge/internal/client"
	"forge/internal/model"
)

// ModelCaller is the subset of the Model Client a role engine needs, kept as
// an interface so tests can fake it without a real model server — the same
// minimal-per-package-interface pattern internal/classify uses.
type ModelCaller interface {
	Call(ctx context.Context, role model.Role, messages []client.Message, opts client.CallOptions) (*client.StreamingResponse, error)
}

// Resolver picks the model for a role/complexity/size triple, same contract
// as router.Router.
type Resolver interface {
	Resolve(ctx context.Context, role model.Role, complexity model.Complexity, size model.Size) (model.Spec, error)
}

// RoleConfig bundles one role's prompt template, output schema, and parser
// together, selected by a model.Role key rather than a type switch.
type RoleConfig struct {
	Role         model.Role
	SystemPrompt string
}

var configs = map[model.Role]RoleConfig{
	model.RolePlanner:  {Role: model.RolePlanner, SystemPrompt: plannerSystemPrompt},
	model.RoleCoder:    {Role: model.RoleCoder, SystemPrompt: coderSystemPrompt},
	model.RoleReviewer: {Role: model.RoleReviewer, SystemPrompt: reviewerSystemPrompt},
	model.RoleAnalyzer: {Role: model.RoleAnalyzer, SystemPrompt: analyzerSystemPrompt},
	model.RoleAgentic:  {Role: model.RoleAgentic, SystemPrompt: agenticSystemPrompt},
}

// ConfigFor returns the RoleConfig for role.
func ConfigFor(role model.Role) RoleConfig {
	return configs[role]
}

// Engine runs all four role prompts through a shared Model Client and
// Router.
type Engine struct {
	caller   ModelCaller
	resolver Resolver
}

// New creates a role Engine against the given Model Client and Router.
func New(caller ModelCaller, resolver Resolver) *Engine {
	return &Engine{caller: caller, resolver: resolver}
}

// call resolves role's model and runs one synchronous chat completion,
// returning the collected text with its reasoning trace already stripped by
// the Model Client's sampling profile.
func (e *Engine) call(ctx context.Context, role model.Role, complexity model.Complexity, size model.Size, messages []client.Message) (string, error) {
	spec, err := e.resolver.Resolve(ctx, role, complexity, size)
	if err != nil {
		return "", fmt.Errorf("resolving model for %s: %w", role, err)
	}
	stream, err := e.caller.Call(ctx, role, messages, client.CallOptions{Spec: spec, Size: size})
	if err != nil {
		return "", fmt.Errorf("calling model for %s: %w", role, err)
	}
	text, err := stream.Collect(ctx)
	if err != nil && text == "" {
		return "", fmt.Errorf("collecting response for %s: %w", role, err)
	}
	return text, nil
}

// extractJSON finds the outermost {...} object in text, tolerating prose or
// fenced code blocks the model wraps the object in.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

func decodeJSON(text string, v any) error {
	raw, ok := extractJSON(text)
	if !ok {
		return fmt.Errorf("no JSON object found in response")
	}
	return json.Unmarshal([]byte(raw), v)
}
