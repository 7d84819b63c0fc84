// Package graph provides the derived dependency view over a task
// collection: referential validation, deterministic auto-repair,
// readiness computation, and next-task selection.
package graph

import (
	"errors"
	"sort"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// Graph is a directed dependency view over a task collection.
// Tasks are nodes; an edge task -> dep means the task is blocked by dep.
// The graph never mutates tasks; AutoFix operates on the collection.
type Graph struct {
	// nodes maps task ID to the task itself.
	nodes map[int]*models.Task
	// ids holds all task IDs in ascending order for deterministic walks.
	ids []int
	// edges maps task ID to the IDs it depends on, as stored.
	edges map[int][]int
}

// New builds the dependency view for a collection. Dangling or
// duplicated references are kept as-is; Validate reports them.
func New(c *models.Collection) *Graph {
	g := &Graph{
		nodes: make(map[int]*models.Task, len(c.Tasks)),
		edges: make(map[int][]int, len(c.Tasks)),
	}
	for i := range c.Tasks {
		t := &c.Tasks[i]
		g.nodes[t.ID] = t
		g.edges[t.ID] = t.Dependencies
		g.ids = append(g.ids, t.ID)
	}
	sort.Ints(g.ids)
	return g
}

// Task returns the task for a given ID, or nil if not found.
func (g *Graph) Task(id int) *models.Task {
	return g.nodes[id]
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the IDs the given task depends on, as stored.
func (g *Graph) Dependencies(id int) []int {
	return g.edges[id]
}

// Dependents returns the IDs of tasks that depend on the given task,
// in ascending order.
func (g *Graph) Dependents(id int) []int {
	var dependents []int
	for _, from := range g.ids {
		for _, depID := range g.edges[from] {
			if depID == id {
				dependents = append(dependents, from)
				break
			}
		}
	}
	return dependents
}

// sortedEdges returns the task's dependency list restricted to known
// tasks, self-edges removed, ascending. Detection walks use this so
// results do not depend on stored dependency order.
func (g *Graph) sortedEdges(id int) []int {
	raw := g.edges[id]
	deps := make([]int, 0, len(raw))
	for _, depID := range raw {
		if depID == id {
			continue
		}
		if _, ok := g.nodes[depID]; !ok {
			continue
		}
		deps = append(deps, depID)
	}
	sort.Ints(deps)
	return deps
}

// TopoOrder returns task IDs with every dependency ordered before the
// tasks that depend on it. Returns ErrCycleDetected when no such order
// exists.
func (g *Graph) TopoOrder() ([]int, error) {
	if len(g.FindCycles()) > 0 {
		return nil, ErrCycleDetected
	}

	visited := make(map[int]bool, len(g.ids))
	result := make([]int, 0, len(g.ids))

	var visit func(id int)
	visit = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.sortedEdges(id) {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.ids {
		visit(id)
	}

	return result, nil
}

// FindCycles runs a depth-first walk with white/gray/black coloring and
// returns every cycle reached through a back edge. Each cycle is the
// ordered node list from the back-edge target to the node that closed
// it. Walk order is ascending by ID so output is deterministic. O(V+E).
func (g *Graph) FindCycles() [][]int {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully processed
	)

	colors := make(map[int]int, len(g.ids))
	var stack []int
	var cycles [][]int

	var visit func(id int)
	visit = func(id int) {
		colors[id] = gray
		stack = append(stack, id)

		for _, depID := range g.sortedEdges(id) {
			switch colors[depID] {
			case gray:
				// Back edge: the cycle runs from depID to the current node.
				for i, onStack := range stack {
					if onStack == depID {
						cycle := make([]int, len(stack)-i)
						copy(cycle, stack[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			case white:
				visit(depID)
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
	}

	for _, id := range g.ids {
		if colors[id] == white {
			visit(id)
		}
	}

	return cycles
}
