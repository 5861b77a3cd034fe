package roleengine

import (
	"context"
	"strings"
	"testing"

	"forge/internal/model"
)

func TestBuildPlannerMessages_NoFailureContextIsJustRequest(t *testing.T) {
	msgs := BuildPlannerMessages("build a todo app", "")
	if len(msgs) != 2 || msgs[1].Content != "build a todo app" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestBuildPlannerMessages_FailureContextPrecedesRequest(t *testing.T) {
	msgs := BuildPlannerMessages("build a todo app", "## Failure Log\n\ntask 3 failed twice")
	if !strings.Contains(msgs[1].Content, "Failure Log") || !strings.HasSuffix(msgs[1].Content, "build a todo app") {
		t.Errorf("content = %q", msgs[1].Content)
	}
}

func TestParsePlannerOutput_DecodesFullShape(t *testing.T) {
	text := `{
		"architecture_summary": "a small REST service",
		"tech_stack": ["go", "postgres"],
		"file_index": [{"path": "main.go", "purpose": "entrypoint (deps: server.go)"}],
		"tasks": [{"id": 1, "file": "main.go", "description": "entrypoint", "depends_on": []}],
		"formal_spec": {"database_schema": "users(id, email)"}
	}`
	out, err := ParsePlannerOutput(text)
	if err != nil {
		t.Fatalf("ParsePlannerOutput: %v", err)
	}
	if out.ArchitectureSummary != "a small REST service" {
		t.Errorf("architecture_summary = %q", out.ArchitectureSummary)
	}
	if len(out.TechStack) != 2 || len(out.FileIndex) != 1 || len(out.Tasks) != 1 {
		t.Errorf("out = %+v", out)
	}
	if out.FormalSpecSlots == nil || out.FormalSpecSlots.DatabaseSchema != "users(id, email)" {
		t.Errorf("formal spec slots = %+v", out.FormalSpecSlots)
	}
}

func TestParsePlannerOutput_OmittedFormalSpecIsNil(t *testing.T) {
	out, err := ParsePlannerOutput(`{"architecture_summary": "x", "tech_stack": [], "file_index": [], "tasks": []}`)
	if err != nil {
		t.Fatalf("ParsePlannerOutput: %v", err)
	}
	if out.FormalSpecSlots != nil {
		t.Errorf("expected nil formal spec slots, got %+v", out.FormalSpecSlots)
	}
}

func TestEngine_RunPlanner_RoundTrips(t *testing.T) {
	e := newTestEngine(`{"architecture_summary": "x", "tech_stack": ["go"], "file_index": [], "tasks": []}`)
	out, err := e.RunPlanner(context.Background(), model.ComplexityMedium, model.SizeMedium, "build something", "")
	if err != nil {
		t.Fatalf("RunPlanner: %v", err)
	}
	if out.ArchitectureSummary != "x" || len(out.TechStack) != 1 {
		t.Errorf("out = %+v", out)
	}
}
