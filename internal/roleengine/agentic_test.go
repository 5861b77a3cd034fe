package roleengine

import (
	"context"
	"testing"

	"forge/internal/model"
)

func TestBuildAgenticMessages_WithoutContextUsesRequestVerbatim(t *testing.T) {
	msgs := BuildAgenticMessages("list the files in the repo", "")
	if len(msgs) != 2 || msgs[1].Content != "list the files in the repo" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestBuildAgenticMessages_WithContextPrependsIt(t *testing.T) {
	msgs := BuildAgenticMessages("run the tests", "## Prior Failure\n\nexit 1")
	if msgs[1].Content == "run the tests" {
		t.Error("expected the agentic context to be folded into the user message")
	}
}

func TestEngine_RunAgentic_ParsesFileAndCommandBlocks(t *testing.T) {
	text := "===FILE: notes.txt===\nhello\n===END===\n===RUN: echo done===\n"
	e := newTestEngine(text)
	result, err := e.RunAgentic(context.Background(), model.ComplexitySimple, model.SizeSmall, "write a note and echo done", "")
	if err != nil {
		t.Fatalf("RunAgentic: %v", err)
	}
	if len(result.Files) != 1 || result.Files[0].Path != "notes.txt" {
		t.Fatalf("files = %+v", result.Files)
	}
	if len(result.Commands) != 1 || result.Commands[0].Command != "echo done" {
		t.Fatalf("commands = %+v", result.Commands)
	}
}
