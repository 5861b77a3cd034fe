package memory

import (
	"regexp"
	"strings"
	"sync"
)

// depsSuffixRe matches a trailing "(deps: a, b, c)" segment on a file index
// purpose string, the convention the Coder and Planner use to declare a
// file's imports inline in the one-line purpose they already produce. The
// dependency graph is derived from this rather than parsed from source,
// since generated files span several languages the engine doesn't compile.
var depsSuffixRe = regexp.MustCompile(`\s*\(deps:\s*([^)]*)\)\s*$`)

// ProjectState is the architecture summary, file index and derived
// dependency graph layers of Memory (spec layers a-c).
type ProjectState struct {
	mu                  sync.RWMutex
	architectureSummary string
	fileIndex           []FileIndexEntry
	indexByPath         map[string]int // path -> index into fileIndex, for O(1) upsert
}

// NewProjectState returns an empty ProjectState.
func NewProjectState() *ProjectState {
	return &ProjectState{indexByPath: make(map[string]int)}
}

// SetArchitectureSummary replaces the architecture summary string.
func (p *ProjectState) SetArchitectureSummary(summary string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.architectureSummary = summary
}

// ArchitectureSummary returns the current architecture summary.
func (p *ProjectState) ArchitectureSummary() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.architectureSummary
}

// UpsertFileIndexEntry inserts a new file index row or updates the purpose
// of an existing one, preserving insertion order for entries that survive.
func (p *ProjectState) UpsertFileIndexEntry(path, purpose string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i, ok := p.indexByPath[path]; ok {
		p.fileIndex[i].Purpose = purpose
		return
	}
	p.indexByPath[path] = len(p.fileIndex)
	p.fileIndex = append(p.fileIndex, FileIndexEntry{Path: path, Purpose: purpose})
}

// FileIndex returns a copy of the ordered file index.
func (p *ProjectState) FileIndex() []FileIndexEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]FileIndexEntry, len(p.fileIndex))
	copy(out, p.fileIndex)
	return out
}

// Purpose returns the recorded purpose for path, if indexed.
func (p *ProjectState) Purpose(path string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.indexByPath[path]
	if !ok {
		return "", false
	}
	return p.fileIndex[i].Purpose, true
}

// DependencyGraph derives path -> imported-paths from each file index entry's
// trailing "(deps: a, b, c)" annotation.
func (p *ProjectState) DependencyGraph() map[string][]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	graph := make(map[string][]string, len(p.fileIndex))
	for _, entry := range p.fileIndex {
		graph[entry.Path] = parseDeps(entry.Purpose)
	}
	return graph
}

func parseDeps(purpose string) []string {
	m := depsSuffixRe.FindStringSubmatch(purpose)
	if m == nil {
		return nil
	}
	var deps []string
	for _, d := range strings.Split(m[1], ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			deps = append(deps, d)
		}
	}
	return deps
}

// Dependents returns the paths whose dependency annotation names path —
// the reverse edge the Coder needs to know what it might break.
func (p *ProjectState) Dependents(path string) []string {
	graph := p.DependencyGraph()
	var dependents []string
	for candidate, deps := range graph {
		for _, d := range deps {
			if d == path {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// strippedPurpose removes the deps annotation, for display contexts that
// show the dependency list separately.
func strippedPurpose(purpose string) string {
	return strings.TrimSpace(depsSuffixRe.ReplaceAllString(purpose, ""))
}

// RenderFileIndex formats the file index as markdown for prompt injection.
func (p *ProjectState) RenderFileIndex() string {
	entries := p.FileIndex()
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## File Index\n\n")
	for _, e := range entries {
		sb.WriteString("- `" + e.Path + "`: " + strippedPurpose(e.Purpose) + "\n")
	}
	return sb.String()
}
