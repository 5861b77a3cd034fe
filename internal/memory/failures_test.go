package memory

import "testing"

func TestFailureLog_AppendIsBoundedPerTask(t *testing.T) {
	log := NewFailureLog(2)
	log.Append(FailureRecord{TaskID: 1, Attempt: 1, Strategy: "A", Outcome: "unchanged"})
	log.Append(FailureRecord{TaskID: 1, Attempt: 2, Strategy: "B", Outcome: "unchanged"})
	log.Append(FailureRecord{TaskID: 1, Attempt: 3, Strategy: "C", Outcome: "fixed"})

	records := log.ForTask(1)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (bounded to maxPerTask)", len(records))
	}
	if records[0].Attempt != 2 || records[1].Attempt != 3 {
		t.Errorf("records = %+v, want oldest dropped", records)
	}
}

func TestFailureLog_ExhaustedStrategiesExcludesFixed(t *testing.T) {
	log := NewFailureLog(8)
	log.Append(FailureRecord{TaskID: 1, Attempt: 1, Strategy: "A", Outcome: "unchanged"})
	log.Append(FailureRecord{TaskID: 1, Attempt: 2, Strategy: "B", Outcome: "regressed"})
	log.Append(FailureRecord{TaskID: 1, Attempt: 3, Strategy: "C", Outcome: "fixed"})

	exhausted := log.ExhaustedStrategies(1)
	if !exhausted["A"] || !exhausted["B"] {
		t.Errorf("exhausted = %v, want A and B", exhausted)
	}
	if exhausted["C"] {
		t.Errorf("exhausted = %v, want C absent (it fixed the task)", exhausted)
	}
}

func TestFailureLog_TasksAreIndependent(t *testing.T) {
	log := NewFailureLog(8)
	log.Append(FailureRecord{TaskID: 1, Attempt: 1, Strategy: "A", Outcome: "unchanged"})
	log.Append(FailureRecord{TaskID: 2, Attempt: 1, Strategy: "A", Outcome: "fixed"})

	if log.Count(1) != 1 || log.Count(2) != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", log.Count(1), log.Count(2))
	}
	if len(log.All()) != 2 {
		t.Errorf("All() = %d records, want 2", len(log.All()))
	}
}

func TestFailureLog_RenderForAnalyzerEmptyWhenNoHistory(t *testing.T) {
	log := NewFailureLog(8)
	if got := log.RenderForAnalyzer(99); got != "" {
		t.Errorf("rendered = %q, want empty for a task with no history", got)
	}
}
