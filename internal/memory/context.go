package memory

import (
	"fmt"
	"sort"
	"strings"
)

// Memory ties together the six layers the spec assigns to this component
// and implements the contextual slicing contract: each role receives a
// purpose-built slice, never a raw dump of another role's conversation.
type Memory struct {
	Project    *ProjectState
	Failures   *FailureLog
	Histories  *HistoryStore
	Embeddings *EmbeddingIndex
}

// NewMemory returns a Memory with fresh, empty layers. historyBound and
// failureBoundPerTask of 0 fall back to their package defaults.
func NewMemory(historyBound, failureBoundPerTask int) *Memory {
	return &Memory{
		Project:    NewProjectState(),
		Failures:   NewFailureLog(failureBoundPerTask),
		Histories:  NewHistoryStore(historyBound),
		Embeddings: NewEmbeddingIndex(),
	}
}

// CoderContext is the contract-mandated slice for the Coder role:
// architecture summary, formal spec slots, the target file's dependency
// context, and the top-k semantically related files when embeddings are
// available.
func (m *Memory) CoderContext(path, specSlots, content string, topK int) string {
	var sb strings.Builder

	if summary := m.Project.ArchitectureSummary(); summary != "" {
		sb.WriteString("## Architecture\n\n" + summary + "\n\n")
	}
	if specSlots != "" {
		sb.WriteString("## Spec Slots\n\n" + specSlots + "\n\n")
	}
	if dep := m.dependencyContext(path); dep != "" {
		sb.WriteString(dep)
	}
	if related := m.relatedFilesContext(path, content, topK); related != "" {
		sb.WriteString(related)
	}

	return sb.String()
}

// dependencyContext renders path's declared dependencies and the files that
// depend on it, so the Coder knows what it might break.
func (m *Memory) dependencyContext(path string) string {
	graph := m.Project.DependencyGraph()
	deps := graph[path]
	dependents := m.Project.Dependents(path)
	if len(deps) == 0 && len(dependents) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Dependency Context\n\n")
	if len(deps) > 0 {
		sb.WriteString("Depends on: " + strings.Join(deps, ", ") + "\n")
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		sb.WriteString("Depended on by: " + strings.Join(dependents, ", ") + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// relatedFilesContext returns the top-k files most similar to content by the
// embedding index, or "" when no embeddings are available — retrieval must
// degrade to an empty result, never an error, per the optional-layer
// contract.
func (m *Memory) relatedFilesContext(path, content string, topK int) string {
	if topK <= 0 || content == "" {
		return ""
	}
	related := m.Embeddings.TopK(content, path, topK)
	if len(related) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Related Files\n\n")
	for _, r := range related {
		purpose, _ := m.Project.Purpose(r.Path)
		sb.WriteString("- `" + r.Path + "`: " + strippedPurpose(purpose) + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// ReviewerContext is the contract-mandated slice for the Reviewer role: the
// file content under review plus the architecture summary. No failure log,
// no other role's history.
func (m *Memory) ReviewerContext(path, content string) string {
	var sb strings.Builder
	if summary := m.Project.ArchitectureSummary(); summary != "" {
		sb.WriteString("## Architecture\n\n" + summary + "\n\n")
	}
	sb.WriteString(fmt.Sprintf("## File Under Review: %s\n\n%s\n", path, content))
	return sb.String()
}

// AnalyzerContext is the contract-mandated slice for the Analyzer role:
// verifier output, this task's failure log, and the architecture summary.
func (m *Memory) AnalyzerContext(taskID int, verifierOutput string) string {
	var sb strings.Builder
	sb.WriteString("## Verifier Output\n\n" + verifierOutput + "\n\n")
	if log := m.Failures.RenderForAnalyzer(taskID); log != "" {
		sb.WriteString(log + "\n")
	}
	if summary := m.Project.ArchitectureSummary(); summary != "" {
		sb.WriteString("## Architecture\n\n" + summary + "\n")
	}
	return sb.String()
}

// PlannerContext is the contract-mandated slice for the Planner role when
// refining a plan: the original request plus the whole session's failure
// log (every task, not one).
func (m *Memory) PlannerContext(originalRequest string) string {
	var sb strings.Builder
	sb.WriteString("## Original Request\n\n" + originalRequest + "\n\n")

	records := m.Failures.All()
	if len(records) == 0 {
		return sb.String()
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].TaskID != records[j].TaskID {
			return records[i].TaskID < records[j].TaskID
		}
		return records[i].Attempt < records[j].Attempt
	})

	sb.WriteString("## Failure Log\n\n")
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("- task %d, attempt %d, strategy %s -> %s: %s\n",
			rec.TaskID, rec.Attempt, rec.Strategy, rec.Outcome, rec.Diagnosis))
	}
	return sb.String()
}
