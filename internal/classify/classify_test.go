package classify

import (
	"context"
	"testing"

	"forge/internal/client"
	"forge/internal/model"
)

// --- Phase A alone (no caller/resolver configured) ---

func TestClassify_EmptyPromptEmptyWorkspaceIsMediumMedium(t *testing.T) {
	c := New(nil, nil)
	complexity, size, err := c.Classify(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if complexity != model.ComplexityMedium || size != model.SizeMedium {
		t.Errorf("got %s/%s, want medium/medium", complexity, size)
	}
}

func TestClassify_HeavySignalWins(t *testing.T) {
	c := New(nil, nil)
	complexity, _, _ := c.Classify(context.Background(), "I want a dating app like tinder", 0)
	if complexity != model.ComplexityHeavy {
		t.Errorf("complexity = %s, want heavy", complexity)
	}
}

func TestClassify_AppForDomainCloneIsHeavyLarge(t *testing.T) {
	c := New(nil, nil)
	complexity, size, _ := c.Classify(context.Background(), "build a tinder for linkedin", 0)
	if complexity != model.ComplexityHeavy {
		t.Errorf("complexity = %s, want heavy", complexity)
	}
	if size != model.SizeLarge {
		t.Errorf("size = %s, want large", size)
	}
}

func TestClassify_SimpleSignalWithoutHeavierCompetitor(t *testing.T) {
	c := New(nil, nil)
	complexity, size, _ := c.Classify(context.Background(), "build me a simple todo list", 10)
	// "build" is a BUILD pattern but there's no medium/heavy competitor, so simple still
	// wins on weight; workspace file count (10 -> medium) still raises size via the
	// independent workspace signal.
	if complexity != model.ComplexitySimple {
		t.Errorf("complexity = %s, want simple", complexity)
	}
	if size != model.SizeMedium {
		t.Errorf("size = %s, want medium (from workspace file count)", size)
	}
}

func TestClassify_TieBetweenMediumAndSimpleFavorsMedium(t *testing.T) {
	c := New(nil, nil)
	// "web app" (medium) and "basic" (simple) both match once; err toward more
	// resources on a tie.
	complexity, _, _ := c.Classify(context.Background(), "a basic web app", 0)
	if complexity != model.ComplexityMedium {
		t.Errorf("complexity = %s, want medium (tie breaks toward more resources)", complexity)
	}
}

func TestClassify_WorkspaceSizeWinsOverSmallerPromptSignal(t *testing.T) {
	c := New(nil, nil)
	_, size, _ := c.Classify(context.Background(), "basic todo app", 50)
	if size != model.SizeLarge {
		t.Errorf("size = %s, want large (workspace file count dominates)", size)
	}
}

func TestClassify_PromptSizeWinsOverSmallerWorkspaceSignal(t *testing.T) {
	c := New(nil, nil)
	_, size, _ := c.Classify(context.Background(), "a marketplace like uber for dog walking", 1)
	if size != model.SizeLarge {
		t.Errorf("size = %s, want large (heavy prompt signal dominates a tiny workspace)", size)
	}
}

// --- Route decision ---

func TestIsBuildRequest_ConstructionVerbTrue(t *testing.T) {
	if !IsBuildRequest("build me a todo app") {
		t.Error("expected 'build me a todo app' to route to the DAG Orchestrator")
	}
}

func TestIsBuildRequest_NoConstructionVerbFalse(t *testing.T) {
	if IsBuildRequest("fix the typo in README.md") {
		t.Error("expected a narrow edit request to route to the Agentic Executor")
	}
}

// --- Phase B fusion ---

type fakeResolver struct {
	spec model.Spec
	err  error
}

func (f *fakeResolver) Resolve(ctx context.Context, role model.Role, c model.Complexity, s model.Size) (model.Spec, error) {
	return f.spec, f.err
}

type fakeCaller struct {
	text string
	err  error
}

func (f *fakeCaller) Call(ctx context.Context, role model.Role, messages []client.Message, opts client.CallOptions) (*client.StreamingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan client.ResponseChunk, 1)
	done := make(chan struct{})
	ch <- client.ResponseChunk{Text: f.text, Done: true}
	close(ch)
	close(done)
	return &client.StreamingResponse{Chunks: ch, Done: done}, nil
}

func TestClassify_PhaseBRaisesComplexityOverPhaseA(t *testing.T) {
	resolver := &fakeResolver{spec: model.Spec{Name: "llama3.2:3b"}}
	caller := &fakeCaller{text: `{"label": "heavy_large"}`}
	c := New(caller, resolver)

	complexity, size, err := c.Classify(context.Background(), "a basic todo app", 0)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if complexity != model.ComplexityHeavy {
		t.Errorf("complexity = %s, want heavy (Phase B overrides a lower Phase A result)", complexity)
	}
	if size != model.SizeLarge {
		t.Errorf("size = %s, want large", size)
	}
}

func TestClassify_PhaseAWinsWhenHigherThanPhaseB(t *testing.T) {
	resolver := &fakeResolver{spec: model.Spec{Name: "llama3.2:3b"}}
	caller := &fakeCaller{text: `{"label": "simple_small"}`}
	c := New(caller, resolver)

	complexity, _, _ := c.Classify(context.Background(), "a marketplace like uber for dogs", 0)
	if complexity != model.ComplexityHeavy {
		t.Errorf("complexity = %s, want heavy (the higher of the two axes wins)", complexity)
	}
}

func TestClassify_UnparsableResponseFallsBackToPhaseAAlone(t *testing.T) {
	resolver := &fakeResolver{spec: model.Spec{Name: "llama3.2:3b"}}
	caller := &fakeCaller{text: "not json at all"}
	c := New(caller, resolver)

	complexity, size, err := c.Classify(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if complexity != model.ComplexityMedium || size != model.SizeMedium {
		t.Errorf("got %s/%s, want medium/medium (default when Phase B yields nothing usable)", complexity, size)
	}
}
