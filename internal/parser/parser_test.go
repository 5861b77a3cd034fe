package parser

import "testing"

func TestParse_CanonicalFileEmission(t *testing.T) {
	text := "===FILE: app.py===\nprint(\"hi\")\n===END===\n"
	result := Parse(text)

	if len(result.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(result.Files))
	}
	if result.Files[0].Path != "app.py" {
		t.Errorf("path = %q, want app.py", result.Files[0].Path)
	}
	if result.Files[0].Content != "print(\"hi\")\n" {
		t.Errorf("content = %q, want %q", result.Files[0].Content, "print(\"hi\")\n")
	}
	if len(result.Commands) != 0 {
		t.Errorf("got %d commands, want 0", len(result.Commands))
	}
	if result.StrategyNumber != 1 {
		t.Errorf("strategy = %d, want 1 (strict markers)", result.StrategyNumber)
	}
}

func TestParse_FenceStripping(t *testing.T) {
	text := "===FILE: package.json===\n```json\n{\"name\":\"x\"}\n```\n===END===\n"
	result := Parse(text)

	if len(result.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(result.Files))
	}
	if result.Files[0].Content != "{\"name\":\"x\"}\n" {
		t.Errorf("content = %q, want fences stripped", result.Files[0].Content)
	}
}

func TestParse_DangerousCommandIsDroppedNotDispatched(t *testing.T) {
	text := "===RUN: rm -rf /===\n"
	result := Parse(text)

	if len(result.Commands) != 0 {
		t.Fatalf("got %d commands, want 0 (dangerous command must never be dispatched)", len(result.Commands))
	}
	if len(result.RejectedCmds) != 1 {
		t.Fatalf("got %d rejected, want 1", len(result.RejectedCmds))
	}
}

func TestParse_ForegroundAndBackgroundCommandsDistinguished(t *testing.T) {
	text := "===RUN: npm test===\n===BACKGROUND: npm run dev===\n"
	result := Parse(text)

	if len(result.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(result.Commands))
	}
	if result.Commands[0].Kind != Foreground || result.Commands[0].Command != "npm test" {
		t.Errorf("commands[0] = %+v, want foreground npm test", result.Commands[0])
	}
	if result.Commands[1].Kind != Background || result.Commands[1].Command != "npm run dev" {
		t.Errorf("commands[1] = %+v, want background npm run dev", result.Commands[1])
	}
}

func TestParse_MarkerFencedStrategyWhenNoEndMarker(t *testing.T) {
	text := "Here's the file:\n\n===FILE: main.go===\n```go\npackage main\n```\n\nDone."
	result := Parse(text)

	if len(result.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(result.Files))
	}
	if result.Files[0].Path != "main.go" {
		t.Errorf("path = %q, want main.go", result.Files[0].Path)
	}
	if result.StrategyNumber != 2 {
		t.Errorf("strategy = %d, want 2 (marker + fenced body)", result.StrategyNumber)
	}
}

func TestParse_HeadingStyleWithoutMarkers(t *testing.T) {
	text := "## src/index.js\n\n```javascript\nconsole.log('hi')\n```\n"
	result := Parse(text)

	if len(result.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(result.Files))
	}
	if result.Files[0].Path != "src/index.js" {
		t.Errorf("path = %q, want src/index.js", result.Files[0].Path)
	}
	if result.StrategyNumber != 3 {
		t.Errorf("strategy = %d, want 3 (heading style)", result.StrategyNumber)
	}
}

func TestParse_BoldHeadingLineAlsoRecognized(t *testing.T) {
	text := "**config.yaml**\n```\nkey: value\n```\n"
	result := Parse(text)

	if len(result.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(result.Files))
	}
	if result.Files[0].Path != "config.yaml" {
		t.Errorf("path = %q, want config.yaml", result.Files[0].Path)
	}
}

func TestParse_BoldLineThatIsNotAPathIsIgnored(t *testing.T) {
	text := "**Note:**\n```\nsome prose, not a file\n```\n"
	result := Parse(text)

	if len(result.Files) != 0 {
		t.Errorf("got %d files, want 0 (bold line isn't a recognizable path)", len(result.Files))
	}
}

func TestParse_MarkerNoEndStopsAtNextMarker(t *testing.T) {
	text := "===FILE: a.txt===\nfirst file body\n===FILE: b.txt===\nsecond file body"
	result := Parse(text)

	if len(result.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(result.Files))
	}
	if result.Files[0].Path != "a.txt" || result.Files[0].Content != "first file body\n" {
		t.Errorf("files[0] = %+v", result.Files[0])
	}
	if result.Files[1].Path != "b.txt" || result.Files[1].Content != "second file body\n" {
		t.Errorf("files[1] = %+v", result.Files[1])
	}
	if result.StrategyNumber != 4 {
		t.Errorf("strategy = %d, want 4 (marker, no end)", result.StrategyNumber)
	}
}

func TestParse_PathEscapingWorkspaceIsRejected(t *testing.T) {
	text := "===FILE: ../../etc/passwd===\nmalicious\n===END===\n"
	result := Parse(text)

	if len(result.Files) != 0 {
		t.Errorf("got %d files, want 0 (path escapes workspace root)", len(result.Files))
	}
	if len(result.RejectedFiles) != 1 {
		t.Fatalf("got %d rejected files, want 1", len(result.RejectedFiles))
	}
}

func TestParse_DisplayTextHasBlocksRemoved(t *testing.T) {
	text := "Some intro.\n===FILE: a.go===\npackage a\n===END===\n===RUN: go test===\nSome outro."
	result := Parse(text)

	if result.DisplayText != "Some intro.\n\nSome outro." {
		t.Errorf("display text = %q", result.DisplayText)
	}
}

func TestParse_MultipleStrictMarkerBlocks(t *testing.T) {
	text := "===FILE: a.go===\npackage a\n===END===\n===FILE: b.go===\npackage b\n===END===\n"
	result := Parse(text)

	if len(result.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(result.Files))
	}
	if result.Files[0].Path != "a.go" || result.Files[1].Path != "b.go" {
		t.Errorf("unexpected paths: %+v", result.Files)
	}
}

func TestParse_NoRecognizedBlocksYieldsNoFilesAndUnchangedDisplay(t *testing.T) {
	text := "just a plain chat reply, nothing to extract"
	result := Parse(text)

	if len(result.Files) != 0 {
		t.Errorf("got %d files, want 0", len(result.Files))
	}
	if result.DisplayText != text {
		t.Errorf("display text = %q, want unchanged", result.DisplayText)
	}
}
