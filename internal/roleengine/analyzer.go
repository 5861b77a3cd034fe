package roleengine

import (
	"context"
	"strings"

	"forge/internal/client"
	"forge/internal/model"
)

const analyzerSystemPrompt = `You are the analysis stage of a code generation pipeline.
You are shown a failing file's verifier output and its prior fix attempts for
this task. Diagnose the root cause and choose a fix strategy. Respond with
ONLY a single JSON object of this shape:

{
  "root_cause": "<diagnosis>",
  "fix_strategy": "<concrete instructions for the coder>",
  "is_dependency_issue": <bool>,
  "forbid_strategies": ["A", ...]
}

Strategies already listed as forbidden have been tried for this task and did
not fix it — choose a different one. Set is_dependency_issue true only when the
failure originates in a file this one depends on, not in this file itself.`

// AnalyzerOutput is the Analyzer role's parsed JSON output.
type AnalyzerOutput struct {
	RootCause         string   `json:"root_cause"`
	FixStrategy       string   `json:"fix_strategy"`
	IsDependencyIssue bool     `json:"is_dependency_issue"`
	ForbidStrategies  []string `json:"forbid_strategies"`
}

// BuildAnalyzeMessages assembles the Analyzer's prompt: the analyzer context
// produced by Memory.AnalyzerContext (verifier output + this task's failure
// log + architecture summary), plus the strategy codes already exhausted for
// this task so the model does not repeat them.
func BuildAnalyzeMessages(analyzerContext string, exhaustedStrategies []string) []client.Message {
	user := analyzerContext
	if len(exhaustedStrategies) > 0 {
		user += "\n\n## Already Exhausted Strategies\n\n" + strings.Join(exhaustedStrategies, ", ")
	}
	return []client.Message{
		{Role: "system", Content: analyzerSystemPrompt},
		{Role: "user", Content: user},
	}
}

// ParseAnalyzerOutput decodes the Analyzer's JSON response.
func ParseAnalyzerOutput(text string) (AnalyzerOutput, error) {
	var out AnalyzerOutput
	if err := decodeJSON(text, &out); err != nil {
		return AnalyzerOutput{}, err
	}
	return out, nil
}

// Analyze calls the Analyzer role and parses its output.
func (e *Engine) Analyze(ctx context.Context, complexity model.Complexity, size model.Size, analyzerContext string, exhaustedStrategies []string) (AnalyzerOutput, error) {
	text, err := e.call(ctx, model.RoleAnalyzer, complexity, size, BuildAnalyzeMessages(analyzerContext, exhaustedStrategies))
	if err != nil {
		return AnalyzerOutput{}, err
	}
	return ParseAnalyzerOutput(text)
}
