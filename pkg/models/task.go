package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status represents the current state of a task.
type Status string

const (
	// StatusPending indicates the task has not started.
	StatusPending Status = "pending"
	// StatusInProgress indicates the task is being worked on.
	StatusInProgress Status = "in-progress"
	// StatusDone indicates the task completed successfully.
	StatusDone Status = "done"
	// StatusBlocked indicates the task cannot proceed.
	StatusBlocked Status = "blocked"
	// StatusDeferred indicates the task is postponed.
	StatusDeferred Status = "deferred"
	// StatusReview indicates the task awaits review.
	StatusReview Status = "review"
	// StatusCancelled indicates the task will not be done.
	StatusCancelled Status = "cancelled"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusBlocked, StatusDeferred, StatusReview, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status marks completed work.
// Only done counts; cancelled tasks are excluded from scheduling but
// never satisfy a dependency.
func (s Status) Terminal() bool {
	return s == StatusDone
}

// ParseStatus normalizes a status string, accepting the aliases
// "completed" (for done) and "in_progress"/"in progress".
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed":
		return StatusDone, nil
	case "in_progress", "in progress":
		return StatusInProgress, nil
	}
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Priority represents how urgent a task is relative to its peers.
type Priority string

const (
	// PriorityHigh is scheduled before medium and low.
	PriorityHigh Priority = "high"
	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"
	// PriorityLow is scheduled last.
	PriorityLow Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank returns the scheduling rank: high sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// ParsePriority normalizes a priority string, defaulting empty to medium.
func ParsePriority(raw string) (Priority, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return PriorityMedium, nil
	}
	p := Priority(trimmed)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}

// SubtaskStatus represents the state of a subtask.
type SubtaskStatus string

const (
	// SubtaskPending indicates the subtask is not finished.
	SubtaskPending SubtaskStatus = "pending"
	// SubtaskCompleted indicates the subtask is finished.
	SubtaskCompleted SubtaskStatus = "completed"
)

// Valid returns true if the subtask status is a known value.
func (s SubtaskStatus) Valid() bool {
	return s == SubtaskPending || s == SubtaskCompleted
}

// Task represents a unit of work in the project graph.
type Task struct {
	// ID is the positive integer identifier, unique within the project.
	// IDs are never reused after a delete.
	ID int `json:"id" yaml:"id"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Status is the current state of the task.
	Status Status `json:"status" yaml:"status"`
	// Priority orders tasks that are equally ready.
	Priority Priority `json:"priority" yaml:"priority"`
	// Dependencies lists task IDs that must be done before this task.
	Dependencies []int `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// Subtasks is the ordered breakdown of this task.
	Subtasks []Subtask `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	// Details holds implementation notes.
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
	// TestStrategy describes how the task will be verified.
	TestStrategy string `json:"test_strategy,omitempty" yaml:"test_strategy,omitempty"`
	// EstimatedEffort is a free-form effort estimate.
	EstimatedEffort string `json:"estimated_effort,omitempty" yaml:"estimated_effort,omitempty"`
	// ActualEffort is a free-form record of effort spent.
	ActualEffort string `json:"actual_effort,omitempty" yaml:"actual_effort,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Subtask represents a child work item scoped to one task.
// Subtasks carry no dependency semantics of their own.
type Subtask struct {
	// ID is unique within the parent task only.
	ID int `json:"id" yaml:"id"`
	// Title is the short description of the subtask.
	Title string `json:"title" yaml:"title"`
	// Description provides detail for the subtask.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Status is pending or completed.
	Status SubtaskStatus `json:"status" yaml:"status"`
	// Assignee optionally names who is working on the subtask.
	Assignee string `json:"assignee,omitempty" yaml:"assignee,omitempty"`
}

// HasDependency reports whether the task lists depID as a dependency.
func (t *Task) HasDependency(depID int) bool {
	for _, d := range t.Dependencies {
		if d == depID {
			return true
		}
	}
	return false
}

// Subtask returns the subtask with the given per-parent ID, or nil.
func (t *Task) Subtask(subID int) *Subtask {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subID {
			return &t.Subtasks[i]
		}
	}
	return nil
}

// NextSubtaskID returns one past the highest subtask ID currently on
// the task, so appends never collide with existing subtasks.
func (t *Task) NextSubtaskID() int {
	max := 0
	for _, st := range t.Subtasks {
		if st.ID > max {
			max = st.ID
		}
	}
	return max + 1
}

// SubtaskRef formats the canonical parent.sub reference, e.g. "5.2".
func SubtaskRef(taskID, subID int) string {
	return strconv.Itoa(taskID) + "." + strconv.Itoa(subID)
}

// ParseSubtaskRef splits a "parent.sub" reference into its parts.
func ParseSubtaskRef(ref string) (taskID, subID int, err error) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid subtask reference %q", ref)
	}
	taskID, err = strconv.Atoi(parts[0])
	if err != nil || taskID <= 0 {
		return 0, 0, fmt.Errorf("invalid subtask reference %q", ref)
	}
	subID, err = strconv.Atoi(parts[1])
	if err != nil || subID <= 0 {
		return 0, 0, fmt.Errorf("invalid subtask reference %q", ref)
	}
	return taskID, subID, nil
}
