// Package orchestrator runs a build request through the Planner, a
// dependency DAG of Coder/Reviewer/Verifier/Analyzer task pipelines, and
// the fix loop that repairs a task that fails verification.
//
// Wave scheduling generalizes the teacher's flat, semaphore-gated parallel
// subtask execution to a full DAG: each wave is the current ready set,
// processed concurrently up to a configured fan-out via an errgroup and a
// counting semaphore, with a synchronous barrier between waves so Memory's
// embedding index only reindexes files a finished wave actually produced.
// A filesystem watcher runs for the lifetime of the build so an edit made
// outside the wave loop — the run command patching a file mid-build, a
// human editing the workspace — invalidates the stale embedding immediately
// rather than waiting for the next wave that happens to touch that path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"forge/internal/contract"
	"forge/internal/fileutil"
	"forge/internal/logging"
	"forge/internal/memory"
	"forge/internal/model"
	"forge/internal/parser"
	"forge/internal/roleengine"
	"forge/internal/security"
	"forge/internal/verify"
)

// MaxReviewRounds is the most review -> patch -> re-review cycles a task
// goes through before proceeding to the verifier regardless of outcome.
const MaxReviewRounds = 2

// errPaused signals that an EscalationHandler chose to pause the build. It
// propagates out of the wave loop and stops scheduling further waves; the
// task that triggered it is left at NEEDS_FIX so a resumed session can pick
// it back up.
var errPaused = errors.New("build paused by escalation handler")

// Config tunes an Orchestrator's concurrency and interactivity.
type Config struct {
	// FanOut bounds how many ready tasks run concurrently in one wave.
	FanOut int
	// TopK bounds how many semantically related files Memory.CoderContext
	// includes for a task.
	TopK int
}

func (c Config) withDefaults() Config {
	if c.FanOut <= 0 {
		c.FanOut = 2
	}
	if c.TopK <= 0 {
		c.TopK = 3
	}
	return c
}

// Orchestrator wires the role Engine, Memory, the file verifier, and an
// optional contract store together into the generate/review/verify/fix
// pipeline.
type Orchestrator struct {
	Engine    *roleengine.Engine
	Memory    *memory.Memory
	Workspace string
	Contracts *contract.Store
	Research  ResearchProvider
	Escalate  EscalationHandler
	Config    Config

	// AfterWave, if set, runs synchronously after each wave's barrier —
	// after embeddings reindex, before the next wave's Ready() call. The
	// engine layer wires this to persist a session checkpoint, keeping
	// this package free of the session format's import.
	AfterWave func(tasks []roleengine.TaskSpec, graph *Graph)
}

// New creates an Orchestrator. Contracts may be nil; formal spec slots are
// then folded into the Coder's context without being persisted.
func New(engine *roleengine.Engine, mem *memory.Memory, workspace string, cfg Config) *Orchestrator {
	return &Orchestrator{
		Engine:    engine,
		Memory:    mem,
		Workspace: workspace,
		Research:  NoResearchProvider{},
		Escalate:  DefaultEscalationHandler,
		Config:    cfg.withDefaults(),
	}
}

// BuildResult is what RunBuild returns: the finished task graph and the
// plan it came from.
type BuildResult struct {
	Plan   roleengine.PlannerOutput
	Graph  *Graph
	Paused bool
}

// RunBuild plans request, builds its task DAG, and runs every task through
// the pipeline wave by wave until no PENDING task remains reachable.
func (o *Orchestrator) RunBuild(ctx context.Context, request string, complexity model.Complexity, size model.Size) (BuildResult, error) {
	if err := o.Memory.Embeddings.Watch(o.Workspace); err != nil {
		logging.Warn("embedding watcher failed to start, continuing without it", "error", err)
	} else {
		defer o.Memory.Embeddings.Close()
	}

	planOut, err := o.Engine.RunPlanner(ctx, complexity, size, request, "")
	if err != nil {
		return BuildResult{}, fmt.Errorf("planning: %w", err)
	}

	o.Memory.Project.SetArchitectureSummary(planOut.ArchitectureSummary)
	for _, f := range planOut.FileIndex {
		o.Memory.Project.UpsertFileIndexEntry(f.Path, f.Purpose)
	}

	planID := uuid.NewString()
	specSlots := o.persistFormalSpec(planID, planOut.FormalSpecSlots)

	graph, err := NewGraph(planOut.Tasks)
	if err != nil {
		return BuildResult{}, fmt.Errorf("building task graph: %w", err)
	}

	tasksByID := make(map[int]roleengine.TaskSpec, len(planOut.Tasks))
	for _, t := range planOut.Tasks {
		tasksByID[t.ID] = t
	}

	for {
		ready := graph.Ready()
		if len(ready) == 0 {
			if graph.PendingCount() == 0 {
				break
			}
			graph.SkipUnreachable()
			break
		}

		var (
			waveMu sync.Mutex
			wave   []string
		)
		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, o.Config.FanOut)
		for _, node := range ready {
			node := node
			task := tasksByID[node.ID]
			sem <- struct{}{}
			g.Go(func() error {
				defer func() { <-sem }()
				if err := o.runTaskPipeline(gctx, node, task, complexity, size, specSlots); err != nil {
					return err
				}
				if node.Status() == TaskVerified {
					waveMu.Lock()
					wave = append(wave, node.File)
					waveMu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if errors.Is(err, errPaused) {
				return BuildResult{Plan: planOut, Graph: graph, Paused: true}, nil
			}
			return BuildResult{Plan: planOut, Graph: graph}, err
		}

		for _, path := range wave {
			if content, err := o.readFile(path); err == nil {
				o.Memory.Embeddings.Upsert(path, content)
			}
		}

		if o.AfterWave != nil {
			o.AfterWave(planOut.Tasks, graph)
		}
	}

	o.verifyFormalSpecContracts(ctx, planID)

	return BuildResult{Plan: planOut, Graph: graph}, nil
}

// verifyFormalSpecContracts re-checks every formal spec contract persisted
// under planID that has gained verifiable examples or invariants since it
// was drafted — a Planner refinement on escalation can attach these to
// record a concrete regression check, not just prose. Contracts with
// nothing verifiable are left in StatusDraft untouched.
func (o *Orchestrator) verifyFormalSpecContracts(ctx context.Context, planID string) {
	if o.Contracts == nil {
		return
	}
	all, err := o.Contracts.List()
	if err != nil {
		return
	}

	verifier := contract.NewVerifier(o.Workspace, 0)
	for _, c := range all {
		if c.PlanID != planID || !c.IsVerifiable() {
			continue
		}
		result, err := verifier.Verify(ctx, c)
		if err != nil {
			continue
		}
		c.LastVerification = result
		if result.Passed {
			c.Status = contract.StatusVerified
		} else {
			c.Status = contract.StatusFailed
			c.Lessons = append(c.Lessons, *contract.NewLesson(
				fmt.Sprintf("%s slot failed verification: %s", c.Slot, failureSummary(result)),
				"pitfall", c.ID, []string{string(c.Slot)},
			))
		}
		_ = o.Contracts.Save(c)
	}
}

// failureSummary returns the first failing example's or invariant's error,
// so a recorded Lesson points at what actually broke rather than just
// "failed".
func failureSummary(result *contract.VerificationResult) string {
	for _, ex := range result.ExampleResults {
		if !ex.Passed {
			return fmt.Sprintf("example %q: %s", ex.Name, ex.Error)
		}
	}
	for _, inv := range result.InvariantResults {
		if !inv.Passed {
			return fmt.Sprintf("invariant %q: %s", inv.Name, inv.Error)
		}
	}
	return "verification failed"
}

// persistFormalSpec turns a plan's non-empty formal spec slots into
// versioned Contracts (when a Store is configured) and returns the
// concatenated slot text for the Coder's context.
func (o *Orchestrator) persistFormalSpec(planID string, slots *roleengine.FormalSpec) string {
	if slots == nil {
		return ""
	}
	pairs := []struct {
		slot    contract.Slot
		content string
	}{
		{contract.SlotDatabaseSchema, slots.DatabaseSchema},
		{contract.SlotAPISurface, slots.APISurface},
		{contract.SlotAuthFlow, slots.AuthFlow},
		{contract.SlotDeployment, slots.Deployment},
	}
	var sb strings.Builder
	for _, p := range pairs {
		if p.content == "" {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", p.slot, p.content)
		if o.Contracts != nil {
			c := contract.NewFormalSpecContract(planID, p.slot, p.content)
			_ = o.Contracts.Save(c)
		}
	}
	return sb.String()
}

// runTaskPipeline takes one task from PENDING through GENERATED, the
// review loop, verification, and — on failure — the fix loop and
// escalation, leaving it at a terminal status unless the build was paused.
func (o *Orchestrator) runTaskPipeline(ctx context.Context, node *TaskNode, task roleengine.TaskSpec, complexity model.Complexity, size model.Size, specSlots string) error {
	node.SetStatus(TaskInProgress)

	coderCtx := o.Memory.CoderContext(node.File, specSlots, task.Description, o.Config.TopK)
	genResult, err := o.Engine.Generate(ctx, complexity, size, task.Description, coderCtx)
	if err != nil {
		return fmt.Errorf("generating %s: %w", node.File, err)
	}
	content := firstFileContent(genResult, node.File)
	node.SetStatus(TaskGenerated)

	content = o.reviewLoop(ctx, node, task, complexity, size, coderCtx, content)

	if err := o.writeFile(node.File, content); err != nil {
		return fmt.Errorf("writing %s: %w", node.File, err)
	}

	result, err := verify.Verify(filepath.Join(o.Workspace, node.File))
	if err != nil {
		return fmt.Errorf("verifying %s: %w", node.File, err)
	}
	if result.Passed {
		node.SetStatus(TaskVerified)
		return nil
	}
	node.SetStatus(TaskNeedsFix)

	result, err = o.runFixLoop(ctx, node, task, complexity, size, coderCtx, result, "", MaxTaskFailures)
	if err != nil {
		return err
	}
	if result.Passed {
		node.SetStatus(TaskVerified)
		return nil
	}

	return o.escalate(ctx, node, task, complexity, size, coderCtx)
}

// reviewLoop runs at most MaxReviewRounds review -> patch cycles, returning
// whatever content the last successful patch produced (or the original if
// none did). The file proceeds to the verifier regardless of whether the
// reviewer ultimately approved it.
func (o *Orchestrator) reviewLoop(ctx context.Context, node *TaskNode, task roleengine.TaskSpec, complexity model.Complexity, size model.Size, coderCtx, content string) string {
	for round := 0; round < MaxReviewRounds; round++ {
		node.SetStatus(TaskReviewing)
		reviewOut, err := o.Engine.Review(ctx, complexity, size, o.Memory.ReviewerContext(node.File, content))
		if err != nil {
			node.SetLastError(err.Error())
			break
		}
		if reviewOut.EffectiveApproval() {
			break
		}
		node.SetLastReviewFeedback(reviewOut.Summary)

		patchResult, err := o.Engine.Patch(ctx, complexity, size, task.Description, content, formatReviewIssues(reviewOut), coderCtx)
		if err != nil || len(patchResult.Files) == 0 {
			break
		}
		content = patchResult.Files[0].Content
	}
	node.SetStatus(TaskReviewed)
	return content
}

// runFixLoop drives up to maxAttempts Analyzer -> Coder.Patch -> Verify
// cycles, advancing the strategy table each attempt and honoring the
// Analyzer's forbid_strategies. It returns the last verification result.
func (o *Orchestrator) runFixLoop(ctx context.Context, node *TaskNode, task roleengine.TaskSpec, complexity model.Complexity, size model.Size, coderCtx string, result verify.Result, hint string, maxAttempts int) (verify.Result, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		attemptNum := node.IncrementFailureCount()
		forbidden := o.Memory.Failures.ExhaustedStrategies(node.ID)
		strategy := SelectStrategy(attemptNum, forbidden)

		analyzerCtx := o.Memory.AnalyzerContext(node.ID, renderVerifierOutput(result))
		if hint != "" {
			analyzerCtx += "\n## Guided Fix Hint\n\n" + hint + "\n"
		}
		analyzeOut, err := o.Engine.Analyze(ctx, complexity, size, analyzerCtx, forbiddenList(forbidden))
		if err != nil {
			node.SetLastError(err.Error())
			continue
		}

		fixText := o.composeFixStrategy(ctx, strategy, analyzeOut)
		current, _ := o.readFile(node.File)
		patchTarget := current
		if strategy == StrategyFullRegeneration || strategy == StrategySimplification {
			patchTarget = ""
		}

		outcome := "unchanged"
		patchDiff := ""
		patchResult, err := o.Engine.Patch(ctx, complexity, size, task.Description, patchTarget, fixText, coderCtx)
		if err == nil && len(patchResult.Files) > 0 {
			patchDiff = renderUnifiedDiff(node.File, current, patchResult.Files[0].Content)
			if writeErr := o.writeFile(node.File, patchResult.Files[0].Content); writeErr == nil {
				if newResult, verr := verify.Verify(filepath.Join(o.Workspace, node.File)); verr == nil {
					result = newResult
					if result.Passed {
						outcome = "fixed"
					}
				}
			}
		}

		o.Memory.Failures.Append(memory.FailureRecord{
			TaskID:          node.ID,
			Attempt:         attemptNum,
			VerifierExcerpt: renderVerifierOutput(result),
			Diagnosis:       analyzeOut.RootCause,
			Strategy:        string(strategy),
			Outcome:         outcome,
			PatchDiff:       patchDiff,
		})

		if result.Passed {
			return result, nil
		}
		node.SetLastError(analyzeOut.RootCause)
	}
	return result, nil
}

// composeFixStrategy turns the Analyzer's fix_strategy text into the
// Coder's patch instructions, augmented per the strategy in play.
func (o *Orchestrator) composeFixStrategy(ctx context.Context, strategy FixStrategy, analyzeOut roleengine.AnalyzerOutput) string {
	text := analyzeOut.FixStrategy
	switch strategy {
	case StrategyDeepAnalysis:
		if analyzeOut.IsDependencyIssue {
			text += "\n\nThis failure originates in a dependency this file relies on, not the file itself; account for the dependency's actual contract when patching."
		}
	case StrategySimplification:
		text += "\n\nRegenerate a minimal version that prioritizes compiling over feature completeness; mark any elided behaviour with a TODO."
	case StrategyResearch:
		guidance, err := o.Research.Research(ctx, analyzeOut.RootCause)
		if err == nil && guidance != "" {
			text += "\n\nResearch guidance:\n" + guidance
		}
	}
	return text
}

// escalate asks the configured EscalationHandler what to do with a task
// that exhausted MaxTaskFailures attempts, and carries out its verdict.
func (o *Orchestrator) escalate(ctx context.Context, node *TaskNode, task roleengine.TaskSpec, complexity model.Complexity, size model.Size, coderCtx string) error {
	for {
		event := o.Escalate(ctx, node.ID, node.LastError())
		switch event.Decision {
		case EscalationSkip:
			node.SetStatus(TaskFailed)
			return nil
		case EscalationPause:
			return errPaused
		case EscalationRetry:
			node.ResetFailureCount()
			result, err := o.runFixLoop(ctx, node, task, complexity, size, coderCtx, verify.Result{}, "", MaxTaskFailures)
			if err != nil {
				return err
			}
			if result.Passed {
				node.SetStatus(TaskVerified)
				return nil
			}
		case EscalationGuidedFix:
			node.ResetFailureCount()
			result, err := o.runFixLoop(ctx, node, task, complexity, size, coderCtx, verify.Result{}, event.Hint, GuidedFixMaxAttempts)
			if err != nil {
				return err
			}
			if result.Passed {
				node.SetStatus(TaskVerified)
				return nil
			}
			node.SetStatus(TaskFailed)
			return nil
		default:
			node.SetStatus(TaskFailed)
			return nil
		}
	}
}

func (o *Orchestrator) writeFile(relPath, content string) error {
	full := filepath.Join(o.Workspace, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	validated, err := security.NewPathValidator([]string{resolvedRoot(o.Workspace)}, false).ValidateFile(full)
	if err != nil {
		return fmt.Errorf("rejecting write to %s: %w", relPath, err)
	}

	tx, err := fileutil.NewFileTransaction()
	if err != nil {
		return err
	}
	if err := tx.Write(validated, []byte(content)); err != nil {
		return err
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

func (o *Orchestrator) readFile(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(o.Workspace, relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func firstFileContent(result parser.Result, wantPath string) string {
	for _, f := range result.Files {
		if f.Path == wantPath || filepath.Base(f.Path) == filepath.Base(wantPath) {
			return f.Content
		}
	}
	if len(result.Files) > 0 {
		return result.Files[0].Content
	}
	return ""
}

func formatReviewIssues(out roleengine.ReviewerOutput) string {
	var sb strings.Builder
	sb.WriteString("Reviewer feedback: " + out.Summary + "\n")
	for _, issue := range out.Issues {
		fmt.Fprintf(&sb, "- [%s] %s\n", issue.Severity, issue.Description)
	}
	return sb.String()
}

func renderVerifierOutput(result verify.Result) string {
	var sb strings.Builder
	for _, c := range result.Checks {
		status := "pass"
		if !c.Passed {
			status = "fail"
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", status, c.Name, c.Detail)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(&sb, "- %s:%d [%s] %s\n", e.Path, e.Line, e.Category, e.Message)
	}
	return sb.String()
}
