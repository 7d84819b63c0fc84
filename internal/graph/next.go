package graph

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// NextResult is the outcome of NextTask. Exactly one of Task or Reason
// is set: Reason explains why nothing is actionable, which is a valid
// outcome rather than an error.
type NextResult struct {
	// Task is the selected task, nil when none qualifies.
	Task *models.Task `json:"task,omitempty"`
	// Reason is set when no task qualifies.
	Reason string `json:"reason,omitempty"`
}

// None reports whether no task was selected.
func (r NextResult) None() bool {
	return r.Task == nil
}

// NextTask selects the task to work on next: a task whose status is
// neither done nor cancelled and whose dependencies are all done.
// Candidates are ordered by priority (high first), then by ascending
// ID. When nothing qualifies the result carries a reason instead.
func (g *Graph) NextTask() NextResult {
	if len(g.ids) == 0 {
		return NextResult{Reason: "no tasks defined"}
	}

	var open, blocked int
	var candidates []*models.Task
	for _, id := range g.ids {
		t := g.nodes[id]
		if t.Status == models.StatusDone || t.Status == models.StatusCancelled {
			continue
		}
		open++
		if g.depsSatisfied(id) {
			candidates = append(candidates, t)
		} else {
			blocked++
		}
	}

	if open == 0 {
		return NextResult{Reason: "all tasks are done or cancelled"}
	}
	if len(candidates) == 0 {
		return NextResult{Reason: fmt.Sprintf("%d open task(s) are waiting on incomplete dependencies", blocked)}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := candidates[i].Priority.Rank(), candidates[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return NextResult{Task: candidates[0]}
}

// depsSatisfied reports whether every dependency of the task exists and
// is done. Missing references and cancelled dependencies never satisfy.
func (g *Graph) depsSatisfied(id int) bool {
	for _, depID := range g.edges[id] {
		dep, ok := g.nodes[depID]
		if !ok {
			return false
		}
		if !dep.Status.Terminal() {
			return false
		}
	}
	return true
}

// Ready returns all tasks that could be started now (same eligibility
// as NextTask), ordered by priority then ID.
func (g *Graph) Ready() []*models.Task {
	var ready []*models.Task
	for _, id := range g.ids {
		t := g.nodes[id]
		if t.Status == models.StatusDone || t.Status == models.StatusCancelled {
			continue
		}
		if g.depsSatisfied(id) {
			ready = append(ready, t)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		ri, rj := ready[i].Priority.Rank(), ready[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return ready[i].ID < ready[j].ID
	})
	return ready
}

// Blocked returns all open tasks whose dependencies are not yet done,
// in ascending ID order.
func (g *Graph) Blocked() []*models.Task {
	var blocked []*models.Task
	for _, id := range g.ids {
		t := g.nodes[id]
		if t.Status == models.StatusDone || t.Status == models.StatusCancelled {
			continue
		}
		if !g.depsSatisfied(id) {
			blocked = append(blocked, t)
		}
	}
	return blocked
}
