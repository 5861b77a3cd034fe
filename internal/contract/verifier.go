package contract

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// blockedCommandPatterns flags a contract's Example/Invariant command as
// unsafe to run unattended: network exfiltration, credential access,
// destructive filesystem or process operations, and privilege escalation.
var blockedCommandPatterns = []string{
	"curl ", "wget ", "nc ", "netcat ",
	"/etc/passwd", "/etc/shadow", "~/.ssh", ".aws/credentials",
	"$HOME/.ssh", "${HOME}/.ssh",
	"rm -rf /", "rm -rf /*", "mkfs", "dd if=",
	"systemctl", "service ", "init ",
	"sudo ", "su -", "chmod 777", "chown root",
	"printenv", "export ", "$AWS_", "$GITHUB_TOKEN",
	"/dev/tcp/", "/dev/udp/", "bash -i",
	"base64 -d", "base64 --decode",
}

// allowedCommandPrefixes whitelists the command families a contract's
// Example/Invariant command may start with — test runners, build/lint
// tools, read-only file and git inspection, and trivial exit-code probes.
var allowedCommandPrefixes = []string{
	"go test", "npm test", "yarn test", "pytest", "cargo test",
	"make test", "make check",
	"go build", "npm run", "yarn ", "cargo build", "make ",
	"go fmt", "go vet", "golint", "eslint", "prettier",
	"cargo fmt", "cargo clippy", "rustfmt",
	"test -f", "test -d", "test -e", "[ -f", "[ -d", "[ -e",
	"ls ", "cat ", "head ", "tail ", "wc ", "grep ",
	"find ", "stat ",
	"git status", "git diff", "git log", "git show",
	"exit ", "true", "false",
	"echo ",
}

// Verifier runs a Contract's Examples and Invariants as shell commands
// against a workspace and reports which ones passed. Every command is
// screened against an allow/deny list before it runs, since the commands
// ultimately come from model output.
type Verifier struct {
	workDir         string
	timeout         time.Duration
	allowUnsafe     bool
	allowedPrefixes []string
	blockedPatterns []string
}

// VerifierOption configures a Verifier at construction.
type VerifierOption func(*Verifier)

// WithAllowUnsafe disables command screening entirely. Only meant for
// contracts whose commands a caller has already reviewed.
func WithAllowUnsafe(allow bool) VerifierOption {
	return func(v *Verifier) { v.allowUnsafe = allow }
}

// WithAllowedPrefixes extends the whitelist beyond allowedCommandPrefixes.
func WithAllowedPrefixes(prefixes []string) VerifierOption {
	return func(v *Verifier) { v.allowedPrefixes = append(v.allowedPrefixes, prefixes...) }
}

// WithBlockedPatterns extends the denylist beyond blockedCommandPatterns.
func WithBlockedPatterns(patterns []string) VerifierOption {
	return func(v *Verifier) { v.blockedPatterns = append(v.blockedPatterns, patterns...) }
}

// NewVerifier builds a Verifier rooted at workDir. timeout <= 0 defaults to
// two minutes per command.
func NewVerifier(workDir string, timeout time.Duration, opts ...VerifierOption) *Verifier {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	v := &Verifier{
		workDir:         workDir,
		timeout:         timeout,
		allowedPrefixes: append([]string(nil), allowedCommandPrefixes...),
		blockedPatterns: append([]string(nil), blockedCommandPatterns...),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CommandSafetyError reports why validateCommand rejected a command.
type CommandSafetyError struct {
	Command string
	Reason  string
}

func (e *CommandSafetyError) Error() string {
	return fmt.Sprintf("unsafe command blocked: %s (reason: %s)", e.Command, e.Reason)
}

// validateCommand checks one Example/Invariant command against the
// blocklist, then delegates each semicolon-chained segment (or the whole
// command, if unchained) to validateCommandPart's whitelist check.
func (v *Verifier) validateCommand(cmd string) error {
	if v.allowUnsafe {
		return nil
	}

	cmd = strings.TrimSpace(cmd)
	lower := strings.ToLower(cmd)

	for _, pattern := range v.blockedPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return &CommandSafetyError{Command: truncateCommand(cmd, 50), Reason: "contains blocked pattern: " + pattern}
		}
	}

	if strings.Contains(cmd, "/../") || strings.HasPrefix(cmd, "../../../") {
		return &CommandSafetyError{Command: truncateCommand(cmd, 50), Reason: "potential path traversal attack"}
	}

	if strings.Contains(cmd, ";") {
		for _, part := range strings.Split(cmd, ";") {
			if err := v.validateCommandPart(strings.TrimSpace(part)); err != nil {
				return err
			}
		}
		return nil
	}
	return v.validateCommandPart(cmd)
}

// validateCommandPart checks one unchained command against the whitelist,
// following a pipe to its first stage and rejecting subshells outright.
func (v *Verifier) validateCommandPart(cmd string) error {
	if cmd == "" {
		return nil
	}
	cmd = strings.TrimSpace(cmd)
	lower := strings.ToLower(cmd)

	for _, prefix := range v.allowedPrefixes {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return nil
		}
	}

	if idx := strings.Index(cmd, "|"); idx > 0 {
		return v.validateCommandPart(strings.TrimSpace(cmd[:idx]))
	}

	if strings.Contains(cmd, "$(") || strings.Contains(cmd, "`") {
		return &CommandSafetyError{Command: truncateCommand(cmd, 50), Reason: "command substitution not allowed"}
	}
	return &CommandSafetyError{Command: truncateCommand(cmd, 50), Reason: "command not in allowed list"}
}

func truncateCommand(cmd string, maxLen int) string {
	if len(cmd) <= maxLen {
		return cmd
	}
	return cmd[:maxLen-3] + "..."
}

// Verify runs every Example and Invariant in c, screening each command
// before it runs, and returns the aggregate result. An unsafe command
// counts as a failed check rather than aborting the whole verification.
func (v *Verifier) Verify(ctx context.Context, c *Contract) (*VerificationResult, error) {
	start := time.Now()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("contract validation failed: %w", err)
	}

	result := &VerificationResult{ContractID: c.ID, Passed: true, VerifiedAt: start}

	for _, ex := range c.Examples {
		if ex.Command == "" {
			continue
		}
		if err := v.validateCommand(ex.Command); err != nil {
			result.ExampleResults = append(result.ExampleResults, ExampleResult{Name: ex.Name, Passed: false, Error: err.Error()})
			result.Passed = false
			continue
		}
		exResult := v.verifyExample(ctx, &ex)
		result.ExampleResults = append(result.ExampleResults, exResult)
		if !exResult.Passed {
			result.Passed = false
		}
	}

	for _, inv := range c.Invariants {
		if inv.Check == "" {
			continue
		}
		if err := v.validateCommand(inv.Check); err != nil {
			result.InvariantResults = append(result.InvariantResults, InvariantResult{Name: inv.Name, Passed: false, Error: err.Error()})
			result.Passed = false
			continue
		}
		invResult := v.verifyInvariant(ctx, &inv)
		result.InvariantResults = append(result.InvariantResults, invResult)
		if !invResult.Passed {
			result.Passed = false
		}
	}

	result.Duration = time.Since(start)
	result.Summary = v.buildSummary(result)
	return result, nil
}

// sandboxEnv is the restricted environment an Example/Invariant command runs
// under: no inherited secrets, a fixed PATH, and absWorkDir standing in for
// HOME so a command that writes dotfiles doesn't escape the workspace.
func sandboxEnv(absWorkDir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + absWorkDir,
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
	}
}

func (v *Verifier) verifyExample(ctx context.Context, ex *Example) ExampleResult {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	absWorkDir, err := filepath.Abs(v.workDir)
	if err != nil {
		return ExampleResult{Name: ex.Name, Passed: false, Error: fmt.Sprintf("invalid work directory: %v", err)}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", ex.Command)
	cmd.Dir = absWorkDir
	cmd.Env = sandboxEnv(absWorkDir)

	output, err := cmd.CombinedOutput()
	outputStr := strings.TrimSpace(string(output))

	if err != nil {
		if ex.MatchType == "exit_code" {
			exitCode := fmt.Sprintf("%d", cmd.ProcessState.ExitCode())
			if exitCode == ex.ExpectedOutput {
				return ExampleResult{Name: ex.Name, Passed: true, Output: outputStr}
			}
			return ExampleResult{Name: ex.Name, Passed: false, Output: outputStr, Error: fmt.Sprintf("expected exit code %s, got %s", ex.ExpectedOutput, exitCode)}
		}
		return ExampleResult{Name: ex.Name, Passed: false, Output: outputStr, Error: err.Error()}
	}

	passed := v.matchOutput(outputStr, ex.ExpectedOutput, ex.MatchType)
	result := ExampleResult{Name: ex.Name, Passed: passed, Output: outputStr}
	if !passed {
		result.Error = fmt.Sprintf("output mismatch (match_type: %s)", ex.MatchType)
	}
	return result
}

func (v *Verifier) verifyInvariant(ctx context.Context, inv *Invariant) InvariantResult {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	absWorkDir, err := filepath.Abs(v.workDir)
	if err != nil {
		return InvariantResult{Name: inv.Name, Passed: false, Error: fmt.Sprintf("invalid work directory: %v", err)}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", inv.Check)
	cmd.Dir = absWorkDir
	cmd.Env = sandboxEnv(absWorkDir)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return InvariantResult{Name: inv.Name, Passed: false, Error: fmt.Sprintf("%s: %s", err.Error(), strings.TrimSpace(string(output)))}
	}
	return InvariantResult{Name: inv.Name, Passed: true}
}

func (v *Verifier) matchOutput(actual, expected, matchType string) bool {
	if expected == "" {
		return true
	}
	switch matchType {
	case "exact":
		return actual == expected
	case "regex":
		matched, err := regexp.MatchString(expected, actual)
		return err == nil && matched
	case "exit_code":
		return actual == expected
	default: // "contains" and anything unrecognized
		return strings.Contains(actual, expected)
	}
}

func (v *Verifier) buildSummary(result *VerificationResult) string {
	passedExamples, totalExamples := 0, len(result.ExampleResults)
	for _, er := range result.ExampleResults {
		if er.Passed {
			passedExamples++
		}
	}
	passedInvariants, totalInvariants := 0, len(result.InvariantResults)
	for _, ir := range result.InvariantResults {
		if ir.Passed {
			passedInvariants++
		}
	}

	var parts []string
	if totalExamples > 0 {
		parts = append(parts, fmt.Sprintf("Examples: %d/%d passed", passedExamples, totalExamples))
	}
	if totalInvariants > 0 {
		parts = append(parts, fmt.Sprintf("Invariants: %d/%d passed", passedInvariants, totalInvariants))
	}
	parts = append(parts, fmt.Sprintf("Duration: %s", result.Duration.Round(time.Millisecond)))
	return strings.Join(parts, ", ")
}
