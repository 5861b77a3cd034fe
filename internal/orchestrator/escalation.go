package orchestrator

import "context"

// GuidedFixMaxAttempts bounds the fix loop a guided-fix escalation
// restarts: three further tries with the hint injected into the
// Analyzer's context, after which an unresolved task is marked FAILED.
const GuidedFixMaxAttempts = 3

// EscalationDecision is what happens to a task that has exhausted
// MaxTaskFailures fix attempts without verifying.
type EscalationDecision string

const (
	EscalationRetry     EscalationDecision = "retry"
	EscalationGuidedFix EscalationDecision = "guided-fix"
	EscalationSkip      EscalationDecision = "skip"
	EscalationPause     EscalationDecision = "pause"
)

// EscalationEvent is the handler's verdict on an exhausted task. Hint is
// set only when Decision is EscalationGuidedFix.
type EscalationEvent struct {
	TaskID   int
	Decision EscalationDecision
	Hint     string
}

// EscalationHandler decides what happens next to a task that has exhausted
// its fix attempts. Non-interactive builds use DefaultEscalationHandler;
// an interactive caller supplies one that prompts the user and returns
// their choice.
type EscalationHandler func(ctx context.Context, taskID int, lastError string) EscalationEvent

// DefaultEscalationHandler always skips, the non-interactive default: an
// unresolved task is marked FAILED and its independent siblings proceed.
func DefaultEscalationHandler(ctx context.Context, taskID int, lastError string) EscalationEvent {
	return EscalationEvent{TaskID: taskID, Decision: EscalationSkip}
}
