package graph

import (
	"fmt"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// AutoFix repairs dependency violations in place and returns the fixes
// it applied, in application order. The repair only ever removes edges,
// in a fixed sequence: self-references, then references to missing
// tasks, then duplicates, then cycle edges. Cycles are broken one edge
// at a time, always the edge pointing at the highest-numbered task in
// the cycle, until the graph is acyclic. Running AutoFix on a clean
// collection changes nothing, and running it twice is the same as
// running it once.
func AutoFix(c *models.Collection) []Violation {
	fixes := []Violation{}

	for i := range c.Tasks {
		t := &c.Tasks[i]
		if len(t.Dependencies) == 0 {
			continue
		}

		kept := t.Dependencies[:0]
		seen := make(map[int]bool)
		for _, depID := range t.Dependencies {
			switch {
			case depID == t.ID:
				fixes = append(fixes, Violation{
					Type:    SelfDependency,
					TaskID:  t.ID,
					DepID:   depID,
					Message: fmt.Sprintf("removed self-dependency from task %d", t.ID),
				})
			case c.Find(depID) == nil:
				fixes = append(fixes, Violation{
					Type:    MissingReference,
					TaskID:  t.ID,
					DepID:   depID,
					Message: fmt.Sprintf("removed dependency on missing task %d from task %d", depID, t.ID),
				})
			case seen[depID]:
				fixes = append(fixes, Violation{
					Type:    DuplicateReference,
					TaskID:  t.ID,
					DepID:   depID,
					Message: fmt.Sprintf("removed duplicate dependency %d from task %d", depID, t.ID),
				})
			default:
				seen[depID] = true
				kept = append(kept, depID)
			}
		}
		if len(kept) == 0 {
			t.Dependencies = nil
		} else {
			t.Dependencies = kept
		}
	}

	fixes = append(fixes, breakCycles(c)...)
	return fixes
}

// breakCycles removes one edge per detected cycle until the collection
// is acyclic, rebuilding the view after each removal so chains that
// share edges are handled consistently.
func breakCycles(c *models.Collection) []Violation {
	var fixes []Violation
	for {
		cycles := New(c).FindCycles()
		if len(cycles) == 0 {
			return fixes
		}

		cycle := cycles[0]
		from, to := cycleEdgeToDrop(cycle)
		removeDependency(c.Find(from), to)
		fixes = append(fixes, Violation{
			Type:    Cycle,
			TaskID:  from,
			DepID:   to,
			Cycle:   cycle,
			Message: fmt.Sprintf("broke cycle %s by removing dependency %d -> %d", formatCycle(cycle), from, to),
		})
	}
}

// cycleEdgeToDrop picks the edge to remove from a cycle: the one whose
// dependency is the highest-numbered task in the chain. Within a simple
// cycle each node is depended on exactly once, so the choice is unique;
// the depending task is the node preceding it in the chain.
func cycleEdgeToDrop(cycle []int) (from, to int) {
	maxIdx := 0
	for i, id := range cycle {
		if id > cycle[maxIdx] {
			maxIdx = i
		}
	}
	to = cycle[maxIdx]
	// cycle[i] depends on cycle[i+1]; the last node depends on the first.
	if maxIdx == 0 {
		from = cycle[len(cycle)-1]
	} else {
		from = cycle[maxIdx-1]
	}
	return from, to
}

// removeDependency drops every occurrence of depID from the task's list.
func removeDependency(t *models.Task, depID int) {
	if t == nil {
		return
	}
	kept := t.Dependencies[:0]
	for _, d := range t.Dependencies {
		if d != depID {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		t.Dependencies = nil
	} else {
		t.Dependencies = kept
	}
}
