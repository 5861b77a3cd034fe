package roleengine

import (
	"context"
	"fmt"

	"forge/internal/client"
	"forge/internal/model"
	"forge/internal/parser"
)

const coderSystemPrompt = `You are the coding stage of a code generation pipeline.
Write the single file you are asked for. Emit its full content between a
===FILE:===/===END=== marker pair, for example:

===FILE: path/to/file.go===
<file content>
===END===

Write only the one file requested, nothing else. Do not restate the task or add
commentary outside the marker block. If the plan's architecture summary or spec
slots fix a library, language, or framework, use exactly that — never drift to
an alternative you would otherwise prefer.`

// BuildGenerateMessages assembles the Coder's prompt for a fresh file: the
// task description plus whatever contextual slice Memory.CoderContext
// produced for this file.
func BuildGenerateMessages(taskDescription, coderContext string) []client.Message {
	user := taskDescription
	if coderContext != "" {
		user = coderContext + "\n\n## Task\n\n" + taskDescription
	}
	return []client.Message{
		{Role: "system", Content: coderSystemPrompt},
		{Role: "user", Content: user},
	}
}

// BuildPatchMessages assembles the Coder's prompt for repairing an existing
// file under a specific fix strategy, as directed by the Analyzer.
func BuildPatchMessages(taskDescription, currentContent, fixStrategy, coderContext string) []client.Message {
	user := fmt.Sprintf("%s\n\n## Task\n\n%s\n\n## Current File Content\n\n%s\n\n## Required Fix Strategy\n\n%s",
		coderContext, taskDescription, currentContent, fixStrategy)
	return []client.Message{
		{Role: "system", Content: coderSystemPrompt},
		{Role: "user", Content: user},
	}
}

// Generate runs the Coder role to produce a new file from scratch, parsing
// its raw response with the Response Parser.
func (e *Engine) Generate(ctx context.Context, complexity model.Complexity, size model.Size, taskDescription, coderContext string) (parser.Result, error) {
	text, err := e.call(ctx, model.RoleCoder, complexity, size, BuildGenerateMessages(taskDescription, coderContext))
	if err != nil {
		return parser.Result{}, err
	}
	return parser.Parse(text), nil
}

// Patch runs the Coder role to repair an existing file under a fix strategy
// supplied by the Analyzer, parsing its raw response with the Response
// Parser.
func (e *Engine) Patch(ctx context.Context, complexity model.Complexity, size model.Size, taskDescription, currentContent, fixStrategy, coderContext string) (parser.Result, error) {
	text, err := e.call(ctx, model.RoleCoder, complexity, size, BuildPatchMessages(taskDescription, currentContent, fixStrategy, coderContext))
	if err != nil {
		return parser.Result{}, err
	}
	return parser.Parse(text), nil
}
