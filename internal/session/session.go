// Package session persists one workspace's build state to a single
// self-describing file, so a killed or restarted engine can resume a build
// instead of starting over. Grounded on the teacher's internal/chat session
// serialization (SessionState's version field, its SessionManager's
// save-on-every-turn cadence) adapted from a directory of many chat
// sessions to the single workspace-local checkpoint this spec calls for,
// and on internal/config/migrate.go's "never silently mutate an
// unrecognized shape" stance, inverted: an unknown version here loads
// read-only rather than being migrated forward.
package session

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"forge/internal/fileutil"
	"forge/internal/memory"
	"forge/internal/model"
	"forge/internal/orchestrator"
	"forge/internal/roleengine"
)

// FormatVersion is the on-disk session format this package reads and
// writes. A file carrying any other version is loaded read-only: its
// contents are returned but never written back, per the self-describing
// format's contract.
const FormatVersion = 1

// FileName is the workspace-relative session state file's name.
const FileName = ".forge_session.yaml"

// TaskState is one TaskNode's mutable pipeline state, serialized alongside
// the Plan's task list rather than duplicating File/Description/DependsOn.
type TaskState struct {
	ID                 int    `yaml:"id"`
	Status             string `yaml:"status"`
	FailureCount       int    `yaml:"failure_count"`
	LastError          string `yaml:"last_error,omitempty"`
	LastReviewFeedback string `yaml:"last_review_feedback,omitempty"`
}

// State is the full on-disk snapshot of a workspace's build session.
type State struct {
	Version             int                                 `yaml:"version"`
	Workspace           string                              `yaml:"workspace"`
	SavedAt             time.Time                           `yaml:"saved_at"`
	ArchitectureSummary string                              `yaml:"architecture_summary"`
	FileIndex           []memory.FileIndexEntry             `yaml:"file_index"`
	Tasks               []roleengine.TaskSpec               `yaml:"tasks"`
	TaskStates          []TaskState                         `yaml:"task_states"`
	Histories           map[model.Role][]memory.ChatMessage `yaml:"histories"`
	Failures            []memory.FailureRecord              `yaml:"failures"`
	Embeddings          []memory.FileEmbedding              `yaml:"embeddings"`
}

// Capture builds a State snapshot from the current task list, the
// Orchestrator's Graph, and Memory — everything Restore needs to resume
// the build later.
func Capture(workspace string, tasks []roleengine.TaskSpec, graph *orchestrator.Graph, mem *memory.Memory) State {
	taskStates := make([]TaskState, 0, len(graph.Nodes()))
	for _, n := range graph.Nodes() {
		taskStates = append(taskStates, TaskState{
			ID:                 n.ID,
			Status:             n.Status().String(),
			FailureCount:       n.FailureCount(),
			LastError:          n.LastError(),
			LastReviewFeedback: n.LastReviewFeedback(),
		})
	}

	return State{
		Version:             FormatVersion,
		Workspace:           workspace,
		SavedAt:             time.Now(),
		ArchitectureSummary: mem.Project.ArchitectureSummary(),
		FileIndex:           mem.Project.FileIndex(),
		Tasks:               tasks,
		TaskStates:          taskStates,
		Histories:           mem.Histories.All(),
		Failures:            mem.Failures.All(),
		Embeddings:          mem.Embeddings.All(),
	}
}

// Save serializes state as YAML and writes it atomically to path.
func Save(path string, state State) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}
	return fileutil.AtomicWrite(path, data, 0o644)
}

// LoadResult is what Load returns: the parsed state and whether it came
// from a format version this package does not write.
type LoadResult struct {
	State    State
	ReadOnly bool
}

// Load reads and parses the session file at path. A version other than
// FormatVersion still parses successfully — the on-disk shape is, after
// all, self-describing YAML — but ReadOnly is set so the caller knows not
// to write it back.
func Load(path string) (LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadResult{}, err
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return LoadResult{}, fmt.Errorf("parsing session state: %w", err)
	}

	return LoadResult{State: state, ReadOnly: state.Version != FormatVersion}, nil
}

// Restore rebuilds a task Graph and repopulates mem from a captured State.
// A task left IN_PROGRESS when the session was saved is downgraded to
// PENDING: generation is not transactional, so a task mid-generation at
// save time has no recoverable partial output to resume from.
func Restore(state State, mem *memory.Memory) (*orchestrator.Graph, error) {
	graph, err := orchestrator.NewGraph(state.Tasks)
	if err != nil {
		return nil, fmt.Errorf("rebuilding task graph: %w", err)
	}

	for _, ts := range state.TaskStates {
		node := graph.Node(ts.ID)
		if node == nil {
			continue
		}

		status, ok := orchestrator.ParseTaskStatus(ts.Status)
		if !ok || status == orchestrator.TaskInProgress {
			status = orchestrator.TaskPending
		}
		node.SetStatus(status)
		node.SetFailureCount(ts.FailureCount)
		node.SetLastError(ts.LastError)
		node.SetLastReviewFeedback(ts.LastReviewFeedback)
	}

	mem.Project.SetArchitectureSummary(state.ArchitectureSummary)
	for _, entry := range state.FileIndex {
		mem.Project.UpsertFileIndexEntry(entry.Path, entry.Purpose)
	}
	mem.Histories.Restore(state.Histories)
	mem.Failures.Restore(state.Failures)
	mem.Embeddings.Restore(state.Embeddings)

	return graph, nil
}
