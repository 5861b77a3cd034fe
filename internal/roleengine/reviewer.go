package roleengine

import (
	"context"

	"forge/internal/client"
	"forge/internal/model"
)

const reviewerSystemPrompt = `You are the review stage of a code generation pipeline.
You are shown one file's content and the project's architecture summary. Judge
whether the file satisfies its task and is consistent with the architecture.
Respond with ONLY a single JSON object of this shape:

{
  "approved": <bool>,
  "issues": [{"severity": "critical|warning|info", "description": "<what's wrong>"}],
  "summary": "<one or two sentence verdict>"
}

Use "critical" only for issues that would break the file or contradict the
architecture. Use "info" for stylistic nits that do not require a rewrite.`

// ReviewIssue is one problem the Reviewer flagged in a file.
type ReviewIssue struct {
	Severity    string `json:"severity"` // critical, warning, info
	Description string `json:"description"`
}

// ReviewerOutput is the Reviewer role's parsed JSON output.
type ReviewerOutput struct {
	Approved bool          `json:"approved"`
	Issues   []ReviewIssue `json:"issues"`
	Summary  string        `json:"summary"`
}

// EffectiveApproval applies the override on top of the model's own Approved
// bool: a review whose issues are all "info" severity is treated as approved
// even if the model set approved=false, since info issues never block a
// file from proceeding to the verifier.
func (o ReviewerOutput) EffectiveApproval() bool {
	if o.Approved {
		return true
	}
	for _, issue := range o.Issues {
		if issue.Severity != "info" {
			return false
		}
	}
	return true
}

// BuildReviewMessages assembles the Reviewer's prompt: the file under review
// plus the architecture summary, as produced by Memory.ReviewerContext.
func BuildReviewMessages(reviewerContext string) []client.Message {
	return []client.Message{
		{Role: "system", Content: reviewerSystemPrompt},
		{Role: "user", Content: reviewerContext},
	}
}

// ParseReviewerOutput decodes the Reviewer's JSON response.
func ParseReviewerOutput(text string) (ReviewerOutput, error) {
	var out ReviewerOutput
	if err := decodeJSON(text, &out); err != nil {
		return ReviewerOutput{}, err
	}
	return out, nil
}

// Review calls the Reviewer role and parses its output. Callers enforce the
// two-round review-patch-review cap; this method runs a single round.
func (e *Engine) Review(ctx context.Context, complexity model.Complexity, size model.Size, reviewerContext string) (ReviewerOutput, error) {
	text, err := e.call(ctx, model.RoleReviewer, complexity, size, BuildReviewMessages(reviewerContext))
	if err != nil {
		return ReviewerOutput{}, err
	}
	return ParseReviewerOutput(text)
}
