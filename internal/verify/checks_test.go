package verify

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestVerify_ValidJSONPasses(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "config.json", `{"name":"x"}`)

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Passed {
		t.Errorf("Passed = false, want true")
	}
	if len(result.Checks) != 1 || result.Checks[0].Name != "syntax" {
		t.Errorf("checks = %+v, want a single syntax check", result.Checks)
	}
}

func TestVerify_InvalidJSONFailsWithStructuredError(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "config.json", `{"name": x}`)

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Passed {
		t.Errorf("Passed = true, want false for malformed JSON")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d structured errors, want 1", len(result.Errors))
	}
}

func TestVerify_UnknownExtensionPassesByDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "notes.txt", "just text")

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Passed {
		t.Errorf("Passed = false, want true (unrecognized extensions pass by default)")
	}
}

func TestExtractStructuredErrors_PythonTracebackFormat(t *testing.T) {
	output := "Traceback (most recent call last):\n" +
		"  File \"app.py\", line 3\n" +
		"    def broken(\n" +
		"SyntaxError: unexpected EOF while parsing\n"

	errs := extractStructuredErrors(output)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0].Path != "app.py" || errs[0].Line != 3 {
		t.Errorf("error = %+v, want path=app.py line=3", errs[0])
	}
}

func TestExtractStructuredErrors_GenericPathLineFormat(t *testing.T) {
	output := "src/index.js:12:5: error: missing semicolon\nsrc/index.js:20:1: warning: unused variable\n"

	errs := extractStructuredErrors(output)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if errs[0].Line != 12 || errs[0].Category != "error" {
		t.Errorf("errs[0] = %+v", errs[0])
	}
	if errs[1].Line != 20 || errs[1].Category != "warning" {
		t.Errorf("errs[1] = %+v", errs[1])
	}
}

func TestDetectRunCommand_PythonEntryFileWins(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "main.py", "print('hi')\n")
	writeTemp(t, dir, "app.js", "console.log('hi')\n")

	cmd, err := DetectRunCommand(dir)
	if err != nil {
		t.Fatalf("DetectRunCommand returned error: %v", err)
	}
	if cmd != "python3 main.py" {
		t.Errorf("cmd = %q, want python3 main.py", cmd)
	}
}

func TestDetectRunCommand_PackageJSONStartScript(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "package.json", `{"scripts":{"start":"node server.js"}}`)

	cmd, err := DetectRunCommand(dir)
	if err != nil {
		t.Fatalf("DetectRunCommand returned error: %v", err)
	}
	if cmd != "npm run start" {
		t.Errorf("cmd = %q, want npm run start", cmd)
	}
}

func TestDetectRunCommand_PackageJSONMainFieldFallback(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "package.json", `{"main":"index.js"}`)

	cmd, err := DetectRunCommand(dir)
	if err != nil {
		t.Fatalf("DetectRunCommand returned error: %v", err)
	}
	if cmd != "node index.js" {
		t.Errorf("cmd = %q, want node index.js", cmd)
	}
}

func TestDetectRunCommand_MalformedPackageJSONIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "package.json", `{not valid json`)
	writeTemp(t, dir, "server.js", "// entry\n")

	cmd, err := DetectRunCommand(dir)
	if err != nil {
		t.Fatalf("DetectRunCommand returned error: %v, want nil (malformed package.json is logged, not fatal)", err)
	}
	if cmd != "node server.js" {
		t.Errorf("cmd = %q, want node server.js (falls through to node entry detection)", cmd)
	}
}

func TestDetectRunCommand_NodeEntryInCommonSubdir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "backend"), 0755); err != nil {
		t.Fatal(err)
	}
	writeTemp(t, dir, filepath.Join("backend", "server.js"), "// entry\n")

	cmd, err := DetectRunCommand(dir)
	if err != nil {
		t.Fatalf("DetectRunCommand returned error: %v", err)
	}
	if cmd != "node backend/server.js" {
		t.Errorf("cmd = %q, want node backend/server.js", cmd)
	}
}

func TestDetectRunCommand_NothingFoundReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "README.md", "# nothing runnable here\n")

	cmd, err := DetectRunCommand(dir)
	if err != nil {
		t.Fatalf("DetectRunCommand returned error: %v", err)
	}
	if cmd != "" {
		t.Errorf("cmd = %q, want empty (no run command detected)", cmd)
	}
}

func TestTruncate_UnderLimitPassesThrough(t *testing.T) {
	out, truncated := truncate("line1\nline2\n", TruncateLines)
	if truncated {
		t.Errorf("truncated = true, want false")
	}
	if out != "line1\nline2\n" {
		t.Errorf("out = %q", out)
	}
}

func TestTruncate_OverLimitCutsToTwentyLines(t *testing.T) {
	var sb []byte
	for i := 0; i < 30; i++ {
		sb = append(sb, []byte("line\n")...)
	}
	out, truncated := truncate(string(sb), TruncateLines)
	if !truncated {
		t.Errorf("truncated = false, want true")
	}
	lineCount := 0
	for _, b := range []byte(out) {
		if b == '\n' {
			lineCount++
		}
	}
	if lineCount != TruncateLines-1 {
		t.Errorf("got %d newlines in truncated output, want %d", lineCount, TruncateLines-1)
	}
}
