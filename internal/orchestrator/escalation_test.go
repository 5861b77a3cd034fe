package orchestrator

import (
	"context"
	"testing"
)

func TestDefaultEscalationHandler_AlwaysSkips(t *testing.T) {
	event := DefaultEscalationHandler(context.Background(), 7, "out of attempts")
	if event.Decision != EscalationSkip {
		t.Errorf("Decision = %v, want skip", event.Decision)
	}
	if event.TaskID != 7 {
		t.Errorf("TaskID = %d, want 7", event.TaskID)
	}
}

func TestEscalationHandler_CustomGuidedFixCarriesHint(t *testing.T) {
	handler := EscalationHandler(func(ctx context.Context, taskID int, lastError string) EscalationEvent {
		return EscalationEvent{TaskID: taskID, Decision: EscalationGuidedFix, Hint: "use the v2 client API"}
	})
	event := handler(context.Background(), 3, "compile error")
	if event.Decision != EscalationGuidedFix || event.Hint == "" {
		t.Errorf("event = %+v", event)
	}
}
