package roleengine

import (
	"context"

	"forge/internal/client"
	"forge/internal/model"
	"forge/internal/parser"
)

const agenticSystemPrompt = `You are the agentic stage of a code generation pipeline,
answering a request that does not call for a full multi-file build. Respond by
emitting whichever of the following blocks you need, and nothing else.

To write a file:
===FILE: path/to/file===
<file content>
===END===

To run a command that must finish before you continue:
===RUN: <command>===

To start a command that keeps running in the background:
===BACKGROUND: <command>===

Order matters: commands run in the order you emit them, after every file write
has landed on disk. Do not restate the request or add commentary outside these
blocks.`

// BuildAgenticMessages assembles the Agentic role's prompt: the request plus
// whatever contextual slice the caller supplies (recent history, a captured
// command failure on an auto-fix retry).
func BuildAgenticMessages(request, agenticContext string) []client.Message {
	user := request
	if agenticContext != "" {
		user = agenticContext + "\n\n## Request\n\n" + request
	}
	return []client.Message{
		{Role: "system", Content: agenticSystemPrompt},
		{Role: "user", Content: user},
	}
}

// RunAgentic runs the Agentic role for a single-shot, non-build request and
// parses its raw response with the Response Parser — the same wire format
// Coder uses, since the model is producing file writes and shell commands
// rather than a JSON object.
func (e *Engine) RunAgentic(ctx context.Context, complexity model.Complexity, size model.Size, request, agenticContext string) (parser.Result, error) {
	text, err := e.call(ctx, model.RoleAgentic, complexity, size, BuildAgenticMessages(request, agenticContext))
	if err != nil {
		return parser.Result{}, err
	}
	return parser.Parse(text), nil
}
