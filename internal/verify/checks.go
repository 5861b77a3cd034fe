// Package verify runs per-language static checks against generated files and
// detects/executes a project's run command.
package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CheckResult is one named check (syntax, lint, ...) within a VerificationResult.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// StructuredError is a single diagnostic extracted from checker output.
type StructuredError struct {
	Path     string
	Line     int
	Category string
	Message  string
}

// Result is the Verifier's output for one file.
type Result struct {
	Passed bool
	Checks []CheckResult // ordered: syntax before lint
	Errors []StructuredError
}

// Verify runs the per-extension checks for path and returns the combined result.
// path must exist and be readable; the content is read once and reused across
// every check that needs it.
func Verify(path string) (Result, error) {
	content, err := readFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".py":
		return verifyPython(path)
	case ".js", ".ts", ".mjs", ".cjs":
		return verifyNodeLike(path)
	case ".json":
		return verifyJSON(path, content)
	default:
		return Result{
			Passed: true,
			Checks: []CheckResult{{Name: "syntax", Passed: true, Detail: "no checks defined for " + ext}},
		}, nil
	}
}

func verifyJSON(path, content string) (Result, error) {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return Result{
			Passed: false,
			Checks: []CheckResult{{Name: "syntax", Passed: false, Detail: err.Error()}},
			Errors: []StructuredError{{Path: path, Category: "syntax", Message: err.Error()}},
		}, nil
	}
	return Result{
		Passed: true,
		Checks: []CheckResult{{Name: "syntax", Passed: true, Detail: "valid JSON"}},
	}, nil
}

// verifyPython runs py_compile as the syntax check, then the first available
// linter from a preferred-then-fallback pair.
func verifyPython(path string) (Result, error) {
	checks := make([]CheckResult, 0, 2)
	var errs []StructuredError

	out, err := runChecker("python3", "-m", "py_compile", path)
	syntaxOK := err == nil
	checks = append(checks, CheckResult{Name: "syntax", Passed: syntaxOK, Detail: firstLine(out, syntaxOK)})
	if !syntaxOK {
		errs = append(errs, extractStructuredErrors(out)...)
	}

	if linterPath, linterArgs, ok := pickPythonLinter(path); ok {
		lintOut, lintErr := runChecker(linterPath, linterArgs...)
		lintOK := lintErr == nil
		checks = append(checks, CheckResult{Name: "lint", Passed: lintOK, Detail: firstLine(lintOut, lintOK)})
		if !lintOK {
			errs = append(errs, extractStructuredErrors(lintOut)...)
		}
	}

	return Result{Passed: syntaxOK, Checks: checks, Errors: errs}, nil
}

// pickPythonLinter prefers ruff, falls back to flake8 if ruff isn't installed.
func pickPythonLinter(path string) (string, []string, bool) {
	if p, err := exec.LookPath("ruff"); err == nil {
		return p, []string{"check", path}, true
	}
	if p, err := exec.LookPath("flake8"); err == nil {
		return p, []string{path}, true
	}
	return "", nil, false
}

// verifyNodeLike uses node's own --check flag for syntax and an optional
// style linter (eslint) when present on PATH.
func verifyNodeLike(path string) (Result, error) {
	checks := make([]CheckResult, 0, 2)
	var errs []StructuredError

	out, err := runChecker("node", "--check", path)
	syntaxOK := err == nil
	checks = append(checks, CheckResult{Name: "syntax", Passed: syntaxOK, Detail: firstLine(out, syntaxOK)})
	if !syntaxOK {
		errs = append(errs, extractStructuredErrors(out)...)
	}

	if linterPath, err := exec.LookPath("eslint"); err == nil {
		lintOut, lintErr := runChecker(linterPath, "--no-eslintrc", "--no-color", path)
		lintOK := lintErr == nil
		checks = append(checks, CheckResult{Name: "lint", Passed: lintOK, Detail: firstLine(lintOut, lintOK)})
		if !lintOK {
			errs = append(errs, extractStructuredErrors(lintOut)...)
		}
	}

	return Result{Passed: syntaxOK, Checks: checks, Errors: errs}, nil
}

// runChecker invokes a local syntax/lint tool and returns its combined output.
// A missing binary is reported as a passing, no-op check by the caller — LookPath
// already gated the linter calls, and py_compile/node are assumed present since
// the Verifier only runs for projects the engine itself just generated.
func runChecker(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func firstLine(output string, passed bool) string {
	if passed {
		return "ok"
	}
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return "failed"
}

// pythonDiagnosticRe matches Python's `File "path", line N` traceback format.
var pythonDiagnosticRe = regexp.MustCompile(`File "([^"]+)", line (\d+)`)

// genericDiagnosticRe matches the common `path:line:col: message` linter format.
var genericDiagnosticRe = regexp.MustCompile(`(?m)^([^\s:][^:\n]*):(\d+):(?:\d+:)?\s*(.+)$`)

// extractStructuredErrors pulls {path, line, category, message} records out of
// checker output, trying the Python traceback format first, then the generic
// path:line[:col]: message format used by node/eslint/ruff/flake8.
func extractStructuredErrors(output string) []StructuredError {
	var out []StructuredError

	if matches := pythonDiagnosticRe.FindAllStringSubmatch(output, -1); len(matches) > 0 {
		for _, m := range matches {
			line, _ := strconv.Atoi(m[2])
			out = append(out, StructuredError{Path: m[1], Line: line, Category: "syntax", Message: messageAfter(output, m[0])})
		}
		return out
	}

	for _, m := range genericDiagnosticRe.FindAllStringSubmatch(output, -1) {
		line, _ := strconv.Atoi(m[2])
		out = append(out, StructuredError{Path: m[1], Line: line, Category: categorize(m[3]), Message: strings.TrimSpace(m[3])})
	}
	return out
}

// messageAfter finds the line following a matched traceback header — Python
// puts the actual error message on the next source line, not inline.
func messageAfter(output, header string) string {
	idx := strings.Index(output, header)
	if idx < 0 {
		return ""
	}
	rest := output[idx+len(header):]
	lines := strings.SplitN(strings.TrimLeft(rest, "\n"), "\n", 2)
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0])
	}
	return ""
}

func categorize(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "error"):
		return "error"
	case strings.Contains(lower, "warn"):
		return "warning"
	default:
		return "info"
	}
}
