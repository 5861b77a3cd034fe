package roleengine

import (
	"context"

	"forge/internal/client"
	"forge/internal/model"
)

const plannerSystemPrompt = `You are the planning stage of a code generation pipeline.
Given a request, produce a complete plan as a single JSON object with this shape:

{
  "architecture_summary": "<prose summary of the system's architecture>",
  "tech_stack": ["<token>", ...],
  "file_index": [{"path": "<file path>", "purpose": "<one-line purpose, optionally ending in (deps: a, b, c)>"}],
  "tasks": [{"id": <int>, "file": "<path>", "description": "<what to build>", "depends_on": [<task id>, ...]}],
  "formal_spec": {"database_schema": "...", "api_surface": "...", "auth_flow": "...", "deployment": "..."}
}

"formal_spec" is only required when the request is non-trivial (more than a handful
of files, or touches persistence/auth/deployment). Omit it for small requests.
task ids are unique integers; depends_on must reference only earlier or sibling ids
and must not create a cycle. Respond with ONLY the JSON object, no prose.`

// FileIndexItem is one row of the Plan's file index.
type FileIndexItem struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// TaskSpec is one task in the Plan's DAG, as produced by the Planner.
type TaskSpec struct {
	ID          int    `json:"id" yaml:"id"`
	File        string `json:"file" yaml:"file"`
	Description string `json:"description" yaml:"description"`
	DependsOn   []int  `json:"depends_on" yaml:"depends_on"`
}

// FormalSpec is the Plan's four formal spec slots, present only for
// non-trivial requests.
type FormalSpec struct {
	DatabaseSchema string `json:"database_schema,omitempty"`
	APISurface     string `json:"api_surface,omitempty"`
	AuthFlow       string `json:"auth_flow,omitempty"`
	Deployment     string `json:"deployment,omitempty"`
}

// PlannerOutput is the Planner role's parsed JSON output.
type PlannerOutput struct {
	ArchitectureSummary string          `json:"architecture_summary"`
	TechStack           []string        `json:"tech_stack"`
	FileIndex           []FileIndexItem `json:"file_index"`
	Tasks               []TaskSpec      `json:"tasks"`
	FormalSpecSlots     *FormalSpec     `json:"formal_spec,omitempty"`
}

// BuildPlannerMessages assembles the Planner's prompt: the original request,
// plus the cross-session failure log when this is a refinement pass rather
// than an initial plan (failureContext is "" for an initial plan).
func BuildPlannerMessages(request, failureContext string) []client.Message {
	user := request
	if failureContext != "" {
		user = failureContext + "\n\n## Request\n\n" + request
	}
	return []client.Message{
		{Role: "system", Content: plannerSystemPrompt},
		{Role: "user", Content: user},
	}
}

// ParsePlannerOutput decodes the Planner's JSON response.
func ParsePlannerOutput(text string) (PlannerOutput, error) {
	var out PlannerOutput
	if err := decodeJSON(text, &out); err != nil {
		return PlannerOutput{}, err
	}
	return out, nil
}

// RunPlanner calls the Planner role and parses its output.
func (e *Engine) RunPlanner(ctx context.Context, complexity model.Complexity, size model.Size, request, failureContext string) (PlannerOutput, error) {
	text, err := e.call(ctx, model.RolePlanner, complexity, size, BuildPlannerMessages(request, failureContext))
	if err != nil {
		return PlannerOutput{}, err
	}
	return ParsePlannerOutput(text)
}
