package roleengine

import (
	"context"
	"testing"

	"forge/internal/model"
)

func TestReviewerOutput_EffectiveApproval_TrueWhenModelApproves(t *testing.T) {
	out := ReviewerOutput{Approved: true}
	if !out.EffectiveApproval() {
		t.Errorf("expected approval")
	}
}

func TestReviewerOutput_EffectiveApproval_InfoOnlyIssuesStillApprove(t *testing.T) {
	out := ReviewerOutput{
		Approved: false,
		Issues: []ReviewIssue{
			{Severity: "info", Description: "prefer a different variable name"},
			{Severity: "info", Description: "could use a doc comment"},
		},
	}
	if !out.EffectiveApproval() {
		t.Errorf("info-only issues should count as approved")
	}
}

func TestReviewerOutput_EffectiveApproval_WarningBlocks(t *testing.T) {
	out := ReviewerOutput{
		Approved: false,
		Issues: []ReviewIssue{
			{Severity: "info", Description: "nit"},
			{Severity: "warning", Description: "missing error check"},
		},
	}
	if out.EffectiveApproval() {
		t.Errorf("a warning issue should not count as approved")
	}
}

func TestReviewerOutput_EffectiveApproval_CriticalBlocks(t *testing.T) {
	out := ReviewerOutput{
		Approved: false,
		Issues:   []ReviewIssue{{Severity: "critical", Description: "does not compile"}},
	}
	if out.EffectiveApproval() {
		t.Errorf("a critical issue should not count as approved")
	}
}

func TestEngine_Review_ParsesOutput(t *testing.T) {
	text := `{"approved": false, "issues": [{"severity": "info", "description": "nit"}], "summary": "looks fine"}`
	e := newTestEngine(text)
	out, err := e.Review(context.Background(), model.ComplexityMedium, model.SizeMedium, "## File Under Review\n\npackage main")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !out.EffectiveApproval() {
		t.Errorf("expected effective approval despite approved=false, got %+v", out)
	}
	if out.Summary != "looks fine" {
		t.Errorf("summary = %q", out.Summary)
	}
}
