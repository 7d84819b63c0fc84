package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// ViolationType classifies a dependency integrity violation.
type ViolationType string

const (
	// MissingReference marks a dependency on a task that does not exist.
	MissingReference ViolationType = "MISSING_REFERENCE"
	// SelfDependency marks a task that depends on itself.
	SelfDependency ViolationType = "SELF_DEPENDENCY"
	// Cycle marks a circular dependency chain.
	Cycle ViolationType = "CYCLE"
	// DuplicateReference marks a dependency listed more than once.
	DuplicateReference ViolationType = "DUPLICATE_REFERENCE"
)

// Violation describes one integrity violation found by Validate,
// or one repair applied by AutoFix.
type Violation struct {
	// Type classifies the violation.
	Type ViolationType `json:"type"`
	// TaskID is the task whose dependency list is at fault.
	// For cycles it is the first node of the reported chain.
	TaskID int `json:"task_id"`
	// DepID is the offending dependency, when a single edge is at fault.
	DepID int `json:"dep_id,omitempty"`
	// Cycle is the ordered node chain for CYCLE violations, from the
	// back-edge target to the node that closed the cycle.
	Cycle []int `json:"cycle,omitempty"`
	// Message is a human-readable description.
	Message string `json:"message"`
}

// Validate checks every dependency list for missing references,
// self-references, duplicates, and cycles. It returns all violations
// found, in ascending task order with cycles last; an empty slice
// means the graph satisfies every invariant. Validate never mutates.
func (g *Graph) Validate() []Violation {
	violations := []Violation{}

	for _, id := range g.ids {
		seen := make(map[int]bool)
		for _, depID := range g.edges[id] {
			if depID == id {
				violations = append(violations, Violation{
					Type:    SelfDependency,
					TaskID:  id,
					DepID:   depID,
					Message: fmt.Sprintf("task %d depends on itself", id),
				})
				continue
			}
			if _, ok := g.nodes[depID]; !ok {
				violations = append(violations, Violation{
					Type:    MissingReference,
					TaskID:  id,
					DepID:   depID,
					Message: fmt.Sprintf("task %d depends on missing task %d", id, depID),
				})
			}
			if seen[depID] {
				violations = append(violations, Violation{
					Type:    DuplicateReference,
					TaskID:  id,
					DepID:   depID,
					Message: fmt.Sprintf("task %d lists dependency %d more than once", id, depID),
				})
			}
			seen[depID] = true
		}
	}

	for _, cycle := range g.FindCycles() {
		violations = append(violations, Violation{
			Type:    Cycle,
			TaskID:  cycle[0],
			Cycle:   cycle,
			Message: fmt.Sprintf("circular dependency: %s", formatCycle(cycle)),
		})
	}

	return violations
}

// formatCycle renders a cycle chain as "1 -> 2 -> 3 -> 1".
func formatCycle(cycle []int) string {
	parts := make([]string, 0, len(cycle)+1)
	for _, id := range cycle {
		parts = append(parts, strconv.Itoa(id))
	}
	parts = append(parts, strconv.Itoa(cycle[0]))
	return strings.Join(parts, " -> ")
}
