package orchestrator

import (
	"fmt"
	"strings"

	"forge/internal/roleengine"
)

// MaxTaskFailures bounds a task's fix-loop attempts before the engine
// escalates to the configured EscalationHandler.
const MaxTaskFailures = 8

// Graph is the build's task DAG: a fixed set of TaskNodes wired by
// DependsOn, validated acyclic at construction time. The Planner creates
// it; the Orchestrator is the only thing that mutates task state.
type Graph struct {
	nodes map[int]*TaskNode
	order []int
}

// PlanInvariantViolated means a Planner output failed one of the
// structural invariants every Plan must hold before the Orchestrator will
// build its task graph: task ids are unique, every task's File is unique,
// every DependsOn targets a task that exists, and the dependency graph is
// acyclic. The build aborts rather than attempting to schedule it.
type PlanInvariantViolated struct {
	Reason string
}

func (e *PlanInvariantViolated) Error() string {
	return fmt.Sprintf("plan invariant violated: %s", e.Reason)
}

// NewGraph builds a Graph from the Planner's task list, rejecting duplicate
// ids, duplicate file paths, dependencies on unknown tasks, and cyclic
// references.
func NewGraph(tasks []roleengine.TaskSpec) (*Graph, error) {
	g := &Graph{nodes: make(map[int]*TaskNode, len(tasks))}
	filesSeen := make(map[string]int, len(tasks))
	for _, t := range tasks {
		if _, exists := g.nodes[t.ID]; exists {
			return nil, &PlanInvariantViolated{Reason: fmt.Sprintf("duplicate task id %d", t.ID)}
		}
		if owner, exists := filesSeen[t.File]; exists {
			return nil, &PlanInvariantViolated{Reason: fmt.Sprintf("duplicate file path %q: tasks %d and %d both target it", t.File, owner, t.ID)}
		}
		filesSeen[t.File] = t.ID

		deps := append([]int(nil), t.DependsOn...)
		g.nodes[t.ID] = &TaskNode{
			ID:          t.ID,
			File:        t.File,
			Description: t.Description,
			DependsOn:   deps,
			status:      TaskPending,
		}
		g.order = append(g.order, t.ID)
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &PlanInvariantViolated{Reason: fmt.Sprintf("task %d depends on unknown task %d", t.ID, dep)}
			}
		}
	}
	if cyc := g.findCycle(); cyc != nil {
		return nil, &PlanInvariantViolated{Reason: fmt.Sprintf("cyclic task dependency: %v", cyc)}
	}
	return g, nil
}

// Node returns the node with the given id, or nil if absent.
func (g *Graph) Node(id int) *TaskNode {
	return g.nodes[id]
}

// Nodes returns every node in Planner insertion order.
func (g *Graph) Nodes() []*TaskNode {
	out := make([]*TaskNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Ready returns every PENDING task whose dependencies have all reached
// VERIFIED, in Planner insertion order.
func (g *Graph) Ready() []*TaskNode {
	var ready []*TaskNode
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Status() != TaskPending {
			continue
		}
		blocked := false
		for _, dep := range n.DependsOn {
			if g.nodes[dep].Status() != TaskVerified {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, n)
		}
	}
	return ready
}

// PendingCount returns how many tasks are still PENDING.
func (g *Graph) PendingCount() int {
	count := 0
	for _, id := range g.order {
		if g.nodes[id].Status() == TaskPending {
			count++
		}
	}
	return count
}

// SkipUnreachable marks every remaining PENDING task SKIPPED. Called when
// the ready set is empty but pending tasks remain: one of their ancestors
// FAILED, so they can never become ready.
func (g *Graph) SkipUnreachable() {
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Status() == TaskPending {
			n.SetStatus(TaskSkipped)
		}
	}
}

// findCycle runs a DFS coloring search and returns the first cycle found
// as a list of task ids, or nil if the graph is acyclic.
func (g *Graph) findCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(g.order))
	var path []int
	var cycle []int

	var visit func(id int) bool
	visit = func(id int) bool {
		color[id] = gray
		path = append(path, id)
		for _, dep := range g.nodes[id].DependsOn {
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				cycle = append(append([]int{}, path...), dep)
				return true
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// Render renders the graph's tasks with status icons and dependency lists,
// generalizing a single-branch plan tree to a full dependency DAG.
func (g *Graph) Render() string {
	var sb strings.Builder
	for _, id := range g.order {
		n := g.nodes[id]
		sb.WriteString(fmt.Sprintf("%s Task %d: %s", statusIcon(n.Status()), n.ID, n.File))
		if len(n.DependsOn) > 0 {
			sb.WriteString(fmt.Sprintf(" (depends on %v)", n.DependsOn))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func statusIcon(s TaskStatus) string {
	switch s {
	case TaskVerified:
		return "✓"
	case TaskFailed:
		return "✗"
	case TaskSkipped:
		return "⊘"
	case TaskInProgress, TaskGenerated, TaskReviewing, TaskReviewed, TaskNeedsFix:
		return "→"
	default:
		return "○"
	}
}
