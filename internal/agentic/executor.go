// Package agentic runs a single-shot, non-build request end to end: one
// Agentic role call produces file writes and shell commands via the
// Response Parser, the writes land on disk, then the commands run in
// order. A foreground command that exits non-zero stops the remaining
// foreground commands — background commands are unaffected — and its
// captured output drives an auto-fix retry through the same
// Analyzer/strategy-table vocabulary the DAG Orchestrator's fix loop uses,
// capped at a few attempts before the failure is surfaced as-is.
//
// Grounded on the teacher's function-calling executeLoop in
// internal/tools/executor.go: that loop iterates model call -> tool
// results -> model call until a final text response lands or an iteration
// cap is hit. This package generalizes the same shape from chained
// function calls to a parse-apply-run cycle, with the cap at
// MaxAutoFixAttempts rather than a dynamic per-history limit, since a
// single-shot request's retry loop is diagnosing one failure, not chaining
// open-ended tool use.
package agentic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"forge/internal/fileutil"
	"forge/internal/memory"
	"forge/internal/model"
	"forge/internal/orchestrator"
	"forge/internal/parser"
	"forge/internal/roleengine"
	"forge/internal/security"
	"forge/internal/tasks"
	"forge/internal/verify"
)

// MaxAutoFixAttempts bounds how many Agentic calls a failing foreground
// command triggers before the failure is returned as-is.
const MaxAutoFixAttempts = 3

// DefaultCommandTimeout bounds one foreground command's run time.
const DefaultCommandTimeout = 2 * time.Minute

// agenticTaskID is the Memory failure log's key for single-shot requests,
// which have no task graph of their own.
const agenticTaskID = 0

// CommandOutcome records one executed (or skipped) command.
type CommandOutcome struct {
	Command string
	Kind    parser.CommandKind
	Result  verify.RunResult
	TaskID  string // set for background commands: the tasks.Manager id
	Skipped bool   // true if an earlier foreground failure stopped this one
}

// Result is what Run returns.
type Result struct {
	Files     []parser.FileWrite
	Commands  []CommandOutcome
	Attempts  int
	Succeeded bool
}

// Executor runs single-shot agentic requests against a workspace.
type Executor struct {
	Engine    *roleengine.Engine
	Memory    *memory.Memory
	Workspace string
	Tasks     *tasks.Manager
	Timeout   time.Duration

	// DryRun, when true, still parses and applies file writes but never
	// starts a command — every parsed command is recorded as Skipped
	// instead. The engine layer sets this from a user's settings when
	// autonomous_access is off, so a request can still edit files
	// without the Executor shelling out on its own.
	DryRun bool
}

// New creates an Executor with DefaultCommandTimeout.
func New(engine *roleengine.Engine, mem *memory.Memory, workspace string, taskMgr *tasks.Manager) *Executor {
	return &Executor{
		Engine:    engine,
		Memory:    mem,
		Workspace: workspace,
		Tasks:     taskMgr,
		Timeout:   DefaultCommandTimeout,
	}
}

// Run drives the generate -> apply -> run -> auto-fix loop for one
// request, returning once a pass produces no foreground failure or
// MaxAutoFixAttempts is exhausted.
func (e *Executor) Run(ctx context.Context, complexity model.Complexity, size model.Size, request string) (Result, error) {
	var agenticCtx string
	var result Result

	for attempt := 1; attempt <= MaxAutoFixAttempts; attempt++ {
		parsed, err := e.Engine.RunAgentic(ctx, complexity, size, request, agenticCtx)
		if err != nil {
			return Result{Attempts: attempt}, fmt.Errorf("agentic call: %w", err)
		}

		if err := e.applyWrites(parsed.Files); err != nil {
			return Result{Files: parsed.Files, Attempts: attempt}, fmt.Errorf("applying writes: %w", err)
		}

		outcomes, failure := e.runCommands(ctx, parsed.Commands)
		result = Result{Files: parsed.Files, Commands: outcomes, Attempts: attempt}

		if failure == nil {
			result.Succeeded = true
			if attempt > 1 {
				e.Memory.Failures.Append(memory.FailureRecord{TaskID: agenticTaskID, Attempt: attempt, Outcome: "fixed"})
			}
			return result, nil
		}

		if attempt == MaxAutoFixAttempts {
			return result, nil
		}

		nextCtx, diagErr := e.diagnoseFailure(ctx, complexity, size, attempt, *failure)
		if diagErr != nil {
			return result, nil
		}
		agenticCtx = nextCtx
	}

	return result, nil
}

// diagnoseFailure runs the Analyzer on a failed command's captured output —
// the Agentic Executor's reuse of the Fix Engine's diagnosis step — and
// renders its verdict as the next attempt's context.
func (e *Executor) diagnoseFailure(ctx context.Context, complexity model.Complexity, size model.Size, attempt int, failure CommandOutcome) (string, error) {
	verifierOutput := fmt.Sprintf("command: %s\nexit code: %d\nstdout:\n%s\nstderr:\n%s",
		failure.Command, failure.Result.ExitCode, failure.Result.Stdout, failure.Result.Stderr)

	forbidden := e.Memory.Failures.ExhaustedStrategies(agenticTaskID)
	analyzerCtx := e.Memory.AnalyzerContext(agenticTaskID, verifierOutput)
	analyzeOut, err := e.Engine.Analyze(ctx, complexity, size, analyzerCtx, sortedKeys(forbidden))
	if err != nil {
		return "", err
	}

	strategy := orchestrator.SelectStrategy(attempt, forbidden)
	e.Memory.Failures.Append(memory.FailureRecord{
		TaskID:          agenticTaskID,
		Attempt:         attempt,
		VerifierExcerpt: verifierOutput,
		Diagnosis:       analyzeOut.RootCause,
		Strategy:        string(strategy),
		Outcome:         "unchanged",
	})

	return fmt.Sprintf("## Previous Attempt Failed\n\n%s\n\n## Diagnosis\n\n%s\n\n## Required Fix\n\n%s",
		verifierOutput, analyzeOut.RootCause, analyzeOut.FixStrategy), nil
}

// applyWrites commits every file write from one Agentic response in a
// single transaction.
func (e *Executor) applyWrites(files []parser.FileWrite) error {
	if len(files) == 0 {
		return nil
	}
	validator := security.NewPathValidator([]string{resolvedRoot(e.Workspace)}, false)

	tx, err := fileutil.NewFileTransaction()
	if err != nil {
		return err
	}
	for _, f := range files {
		full := filepath.Join(e.Workspace, f.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		validated, err := validator.ValidateFile(full)
		if err != nil {
			return fmt.Errorf("rejecting write to %s: %w", f.Path, err)
		}
		if err := tx.Write(validated, []byte(f.Content)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// resolvedRoot makes workspace absolute and resolves any symlinks in it, so
// it compares correctly against the fully-resolved paths
// security.PathValidator produces for files being written inside it.
func resolvedRoot(workspace string) string {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return workspace
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// runCommands runs commands in order. The first foreground command to exit
// non-zero stops every later foreground command (marked Skipped); later
// background commands still start.
func (e *Executor) runCommands(ctx context.Context, cmds []parser.ShellCommand) ([]CommandOutcome, *CommandOutcome) {
	var outcomes []CommandOutcome
	var failure *CommandOutcome
	stopped := false

	for _, cmd := range cmds {
		if e.DryRun {
			outcomes = append(outcomes, CommandOutcome{Command: cmd.Command, Kind: cmd.Kind, Skipped: true})
			continue
		}

		if cmd.Kind == parser.Background {
			id, err := verify.RunBackground(ctx, e.Tasks, cmd.Command)
			outcome := CommandOutcome{Command: cmd.Command, Kind: cmd.Kind, TaskID: id}
			if err != nil {
				outcome.Result = verify.RunResult{ExitCode: -1, Stderr: err.Error()}
			}
			outcomes = append(outcomes, outcome)
			continue
		}

		if stopped {
			outcomes = append(outcomes, CommandOutcome{Command: cmd.Command, Kind: cmd.Kind, Skipped: true})
			continue
		}

		runResult, err := verify.Run(ctx, e.Workspace, cmd.Command, e.Timeout)
		if err != nil {
			runResult.ExitCode = -1
			runResult.Stderr += "\n" + err.Error()
		}
		outcome := CommandOutcome{Command: cmd.Command, Kind: cmd.Kind, Result: runResult}
		outcomes = append(outcomes, outcome)

		if outcome.Result.ExitCode != 0 {
			stopped = true
			failure = &outcome
		}
	}

	return outcomes, failure
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
