package verify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"forge/internal/logging"
	"forge/internal/tasks"
)

// DefaultTimeout is the synchronous run timeout per the run-command contract.
const DefaultTimeout = 120 * time.Second

// TruncateLines is the maximum number of output lines kept for display.
const TruncateLines = 20

// pollInterval is how often Run polls the underlying task for completion,
// matching tasks.Manager.monitorTask's own poll cadence.
const pollInterval = 100 * time.Millisecond

// commonSubdirs is where node entry files are searched when none exists at
// the workspace root, in priority order.
var commonSubdirs = []string{".", "server", "backend", "src", "api", "app"}

var nodeEntryFiles = []string{"app.js", "index.js", "server.js", "main.js"}

// packageJSON is the subset of package.json fields the run-command detector reads.
type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
	Main    string            `json:"main"`
}

// DetectRunCommand implements detect_run_command(workspace) -> command or null.
// Detection order: a Python entry file, package.json scripts/main, known node
// entry files in common subdirectories, an HTML entry, then any .py file.
// Returns "" with a nil error when nothing matches.
func DetectRunCommand(workspace string) (string, error) {
	if cmd, ok := detectPythonEntry(workspace); ok {
		return cmd, nil
	}
	if cmd, ok := detectPackageJSON(workspace); ok {
		return cmd, nil
	}
	if cmd, ok := detectNodeEntry(workspace); ok {
		return cmd, nil
	}
	if cmd, ok := detectHTMLEntry(workspace); ok {
		return cmd, nil
	}
	if cmd, ok := detectAnyPython(workspace); ok {
		return cmd, nil
	}
	return "", nil
}

func detectPythonEntry(workspace string) (string, bool) {
	for _, name := range []string{"main.py", "app.py"} {
		if fileExists(filepath.Join(workspace, name)) {
			return "python3 " + name, true
		}
	}
	return "", false
}

func detectPackageJSON(workspace string) (string, bool) {
	path := filepath.Join(workspace, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		logging.Warn("malformed package.json, skipping", "path", path, "error", err)
		return "", false
	}

	for _, script := range []string{"start", "dev"} {
		if _, ok := pkg.Scripts[script]; ok {
			return "npm run " + script, true
		}
	}
	if pkg.Main != "" {
		return "node " + pkg.Main, true
	}
	return "", false
}

func detectNodeEntry(workspace string) (string, bool) {
	for _, dir := range commonSubdirs {
		for _, name := range nodeEntryFiles {
			rel := filepath.Join(dir, name)
			if fileExists(filepath.Join(workspace, rel)) {
				return "node " + filepath.ToSlash(rel), true
			}
		}
	}
	return "", false
}

func detectHTMLEntry(workspace string) (string, bool) {
	matches, err := doublestar.Glob(os.DirFS(workspace), "**/index.html")
	if err != nil || len(matches) == 0 {
		return "", false
	}
	dir := filepath.Dir(matches[0])
	if dir == "." {
		return "python3 -m http.server", true
	}
	return "python3 -m http.server --directory " + filepath.ToSlash(dir), true
}

func detectAnyPython(workspace string) (string, bool) {
	matches, err := doublestar.Glob(os.DirFS(workspace), "**/*.py")
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return "python3 " + filepath.ToSlash(matches[0]), true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// RunResult is the outcome of a synchronous foreground run.
type RunResult struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
}

// Run implements run(command, timeout) -> (exit, stdout, stderr, truncated).
// It delegates process management entirely to tasks.Task — sanitized
// environment, process-group isolation, SIGKILL-on-cancel — and only adds the
// timeout and line-truncation the Verifier contract requires on top.
func Run(ctx context.Context, workspace, command string, timeout time.Duration) (RunResult, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task := tasks.NewTask(fmt.Sprintf("verify_%d", time.Now().UnixNano()), command, workspace)
	if err := task.Start(runCtx); err != nil {
		return RunResult{}, err
	}

	for !task.IsComplete() {
		select {
		case <-runCtx.Done():
			task.Cancel()
			time.Sleep(pollInterval)
		case <-time.After(pollInterval):
		}
	}

	info := task.GetInfo()
	outText, truncated := truncate(info.Output, TruncateLines)

	exitCode := info.ExitCode
	if info.Status == "cancelled" {
		exitCode = -1
	}

	return RunResult{
		ExitCode:  exitCode,
		Stdout:    outText,
		Stderr:    "", // tasks.Task merges stderr into the same combined-output buffer
		Truncated: truncated,
	}, nil
}

func truncate(output string, maxLines int) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) <= maxLines {
		return output, false
	}
	return strings.Join(lines[:maxLines], "\n"), true
}

// RunBackground starts command without waiting for it to exit, for the
// Verifier's non-blocking mode (dev servers). It is a thin wrapper over
// tasks.Manager — the caller owns the Manager's lifetime (one per session).
func RunBackground(ctx context.Context, manager *tasks.Manager, command string) (string, error) {
	return manager.Start(ctx, command)
}
