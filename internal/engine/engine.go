// Package engine wires the Model Client, Router, Classifier, Role Engines,
// Memory, contract store, task manager, DAG Orchestrator, and Agentic
// Executor into one value scoped to a single workspace. Per Design Note
// "Global mutable state", nothing here is a package-level singleton: every
// operation hangs off an *Engine a caller constructed explicitly, the way
// the teacher's internal/app.New(cfg, workDir) builds one *App per run
// rather than reaching for global config.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"forge/internal/agentic"
	"forge/internal/classify"
	"forge/internal/client"
	"forge/internal/config"
	"forge/internal/contract"
	"forge/internal/logging"
	"forge/internal/memory"
	"forge/internal/model"
	"forge/internal/orchestrator"
	"forge/internal/roleengine"
	"forge/internal/router"
	"forge/internal/session"
	"forge/internal/tasks"
)

// Engine owns every subordinate component for one workspace.
type Engine struct {
	Settings     *config.Settings
	Workspace    string
	Client       *client.Client
	Router       *router.Router
	Classifier   *classify.Classifier
	RoleEngine   *roleengine.Engine
	Memory       *memory.Memory
	Tasks        *tasks.Manager
	Contracts    *contract.Store
	Orchestrator *orchestrator.Orchestrator
	Agentic      *agentic.Executor
}

// sessionPath returns the workspace-local session checkpoint's path.
func (e *Engine) sessionPath() string {
	return filepath.Join(e.Workspace, session.FileName)
}

// New builds an Engine for workspace, loading per-user settings and
// connecting to the local model server. offer, if non-nil, is forwarded to
// the Router so an interactive caller can confirm a model download; pass
// nil for a non-interactive (agentic) caller.
func New(workspace string, offer router.DownloadOffer) (*Engine, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	logging.Configure(settings.LogLevel, nil)

	modelClient, err := client.New(client.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to model server: %w", err)
	}

	r := router.New(modelClient, offer)
	classifier := classify.New(modelClient, r)
	roleEngine := roleengine.New(modelClient, r)
	mem := memory.NewMemory(0, 0)
	taskMgr := tasks.NewManager(workspace)
	taskMgr.SetCompletionHandler(func(t *tasks.Task) {
		info := t.GetInfo()
		logging.Info("background task finished", "id", info.ID, "command", info.Command, "status", info.Status, "exit_code", info.ExitCode)
	})

	configDir := filepath.Dir(config.SettingsPath())
	contracts, err := contract.NewStore(workspace, configDir)
	if err != nil {
		return nil, fmt.Errorf("opening contract store: %w", err)
	}

	orch := orchestrator.New(roleEngine, mem, workspace, orchestrator.Config{})
	orch.Contracts = contracts
	if !settings.InternetAccess {
		orch.Research = orchestrator.NoResearchProvider{}
	}

	agent := agentic.New(roleEngine, mem, workspace, taskMgr)
	agent.DryRun = !settings.AutonomousAccess

	e := &Engine{
		Settings:     settings,
		Workspace:    workspace,
		Client:       modelClient,
		Router:       r,
		Classifier:   classifier,
		RoleEngine:   roleEngine,
		Memory:       mem,
		Tasks:        taskMgr,
		Contracts:    contracts,
		Orchestrator: orch,
		Agentic:      agent,
	}
	orch.AfterWave = e.saveCheckpoint

	return e, nil
}

// saveCheckpoint is the Orchestrator's AfterWave hook: it captures the
// current task/graph/memory state and writes it to the workspace's session
// file, so a killed engine can resume from the last completed wave.
func (e *Engine) saveCheckpoint(tasks []roleengine.TaskSpec, graph *orchestrator.Graph) {
	state := session.Capture(e.Workspace, tasks, graph, e.Memory)
	if err := session.Save(e.sessionPath(), state); err != nil {
		logging.Warn("failed to save session checkpoint", "workspace", e.Workspace, "error", err)
	}
}

// Resume loads a prior session checkpoint from the workspace, if one
// exists, and repopulates Memory from it. A missing file is not an error —
// a fresh workspace simply starts with empty Memory. A checkpoint written
// by a different format version loads read-only: its Memory contents are
// still restored (harmless context), but Resume never writes it back.
func (e *Engine) Resume() error {
	result, err := session.Load(e.sessionPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("loading session checkpoint: %w", err)
	}

	if _, err := session.Restore(result.State, e.Memory); err != nil {
		return fmt.Errorf("restoring session checkpoint: %w", err)
	}
	return nil
}

// Route is the Classifier's build-vs-agentic decision for one request,
// counting the workspace's current files for the size axis's independent
// signal.
type Route struct {
	Complexity model.Complexity
	Size       model.Size
	IsBuild    bool
}

// Classify runs the Classifier and the build-request detector together —
// the "chat" CLI mode's read-only dry run, and the first step of the
// "agent" mode's Handle.
func (e *Engine) Classify(ctx context.Context, request string) (Route, error) {
	fileCount, err := countFiles(e.Workspace)
	if err != nil {
		return Route{}, fmt.Errorf("counting workspace files: %w", err)
	}

	complexity, size, err := e.Classifier.Classify(ctx, request, fileCount)
	if err != nil {
		return Route{}, fmt.Errorf("classifying request: %w", err)
	}

	return Route{Complexity: complexity, Size: size, IsBuild: classify.IsBuildRequest(request)}, nil
}

// Handle routes request to the DAG Orchestrator or the Agentic Executor
// per its Route, and is the "agent" CLI mode's single entry point.
func (e *Engine) Handle(ctx context.Context, request string) (any, error) {
	route, err := e.Classify(ctx, request)
	if err != nil {
		return nil, err
	}

	if route.IsBuild {
		result, err := e.Orchestrator.RunBuild(ctx, request, route.Complexity, route.Size)
		if err != nil {
			return result, err
		}
		e.saveCheckpoint(result.Plan.Tasks, result.Graph)
		return result, nil
	}

	return e.Agentic.Run(ctx, route.Complexity, route.Size, request)
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" || info.Name() == ".forge" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == session.FileName {
			return nil
		}
		count++
		return nil
	})
	return count, err
}
