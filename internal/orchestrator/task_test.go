package orchestrator

import "testing"

func TestTaskStatus_StringAndIsTerminal(t *testing.T) {
	cases := []struct {
		status   TaskStatus
		text     string
		terminal bool
	}{
		{TaskPending, "pending", false},
		{TaskInProgress, "in_progress", false},
		{TaskReviewing, "reviewing", false},
		{TaskNeedsFix, "needs_fix", false},
		{TaskVerified, "verified", true},
		{TaskFailed, "failed", true},
		{TaskSkipped, "skipped", true},
	}
	for _, c := range cases {
		if got := c.status.String(); got != c.text {
			t.Errorf("%v.String() = %q, want %q", int(c.status), got, c.text)
		}
		if got := c.status.IsTerminal(); got != c.terminal {
			t.Errorf("%v.IsTerminal() = %v, want %v", c.text, got, c.terminal)
		}
	}
}

func TestTaskNode_FailureCountRoundTrip(t *testing.T) {
	n := &TaskNode{ID: 1}
	if n.FailureCount() != 0 {
		t.Fatalf("new node should start at 0 failures")
	}
	if got := n.IncrementFailureCount(); got != 1 {
		t.Errorf("first increment = %d, want 1", got)
	}
	n.IncrementFailureCount()
	if n.FailureCount() != 2 {
		t.Errorf("failure count = %d, want 2", n.FailureCount())
	}
	n.ResetFailureCount()
	if n.FailureCount() != 0 {
		t.Errorf("reset failed, count = %d", n.FailureCount())
	}
}

func TestTaskNode_StatusAndErrorTracking(t *testing.T) {
	n := &TaskNode{ID: 1}
	n.SetStatus(TaskGenerated)
	if n.Status() != TaskGenerated {
		t.Errorf("status = %v, want generated", n.Status())
	}
	n.SetLastError("boom")
	if n.LastError() != "boom" {
		t.Errorf("LastError() = %q", n.LastError())
	}
	n.SetLastReviewFeedback("needs more tests")
	if n.LastReviewFeedback() != "needs more tests" {
		t.Errorf("LastReviewFeedback() = %q", n.LastReviewFeedback())
	}
}
