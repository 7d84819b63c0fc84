package models

import (
	"fmt"
	"sort"
	"time"
)

// Collection is the full task set for one project plus the id allocator.
// The allocator only moves forward so deleted ids are never handed out again.
type Collection struct {
	// NextID is the next task id to allocate.
	NextID int `json:"next_id" yaml:"next_id"`
	// Tasks holds every task in the project, kept sorted by id.
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// NewCollection returns an empty collection with the allocator at 1.
func NewCollection() *Collection {
	return &Collection{NextID: 1, Tasks: []Task{}}
}

// Find returns a pointer to the task with the given id, or nil.
// The pointer is into the collection's backing slice; callers that
// hold it across an append must re-find.
func (c *Collection) Find(id int) *Task {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return &c.Tasks[i]
		}
	}
	return nil
}

// Index returns the slice index of the task with the given id, or -1.
func (c *Collection) Index(id int) int {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// IDs returns all task ids in ascending order.
func (c *Collection) IDs() []int {
	ids := make([]int, 0, len(c.Tasks))
	for i := range c.Tasks {
		ids = append(ids, c.Tasks[i].ID)
	}
	sort.Ints(ids)
	return ids
}

// AllocateID hands out the next task id and advances the allocator.
func (c *Collection) AllocateID() int {
	if c.NextID < 1 {
		c.NextID = 1
	}
	id := c.NextID
	c.NextID++
	return id
}

// Add appends a task, assigning an id from the allocator when the
// draft has none, and keeps the slice sorted by id.
func (c *Collection) Add(t Task) (int, error) {
	if t.ID == 0 {
		t.ID = c.AllocateID()
	} else {
		if t.ID < 0 {
			return 0, fmt.Errorf("task id must be positive, got %d", t.ID)
		}
		if c.Find(t.ID) != nil {
			return 0, fmt.Errorf("task %d already exists", t.ID)
		}
		if t.ID >= c.NextID {
			c.NextID = t.ID + 1
		}
	}
	c.Tasks = append(c.Tasks, t)
	c.SortByID()
	return t.ID, nil
}

// Remove deletes the task with the given id. It does not touch other
// tasks' dependency lists; callers strip inbound references themselves.
func (c *Collection) Remove(id int) bool {
	idx := c.Index(id)
	if idx < 0 {
		return false
	}
	c.Tasks = append(c.Tasks[:idx], c.Tasks[idx+1:]...)
	return true
}

// SortByID orders tasks ascending by id.
func (c *Collection) SortByID() {
	sort.Slice(c.Tasks, func(i, j int) bool {
		return c.Tasks[i].ID < c.Tasks[j].ID
	})
}

// Clone deep-copies the collection so mutations on the copy never
// reach the original. Used for working copies and rollback.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		NextID: c.NextID,
		Tasks:  make([]Task, len(c.Tasks)),
	}
	for i := range c.Tasks {
		t := c.Tasks[i]
		if t.Dependencies != nil {
			deps := make([]int, len(t.Dependencies))
			copy(deps, t.Dependencies)
			t.Dependencies = deps
		}
		if t.Subtasks != nil {
			subs := make([]Subtask, len(t.Subtasks))
			copy(subs, t.Subtasks)
			t.Subtasks = subs
		}
		out.Tasks[i] = t
	}
	return out
}

// Normalize repairs loadable-but-loose data: missing statuses become
// pending, missing priorities become medium, alias status spellings are
// canonicalized, zero timestamps are stamped, and the id allocator is
// advanced past the highest task id. Unknown enum values and duplicate
// ids are an error.
func (c *Collection) Normalize(now time.Time) error {
	maxID := 0
	seenIDs := make(map[int]bool, len(c.Tasks))
	for i := range c.Tasks {
		t := &c.Tasks[i]
		if t.ID <= 0 {
			return fmt.Errorf("task %q: id must be a positive integer", t.Title)
		}
		if seenIDs[t.ID] {
			return fmt.Errorf("task id %d appears more than once", t.ID)
		}
		seenIDs[t.ID] = true
		if t.ID > maxID {
			maxID = t.ID
		}
		if t.Title == "" {
			return fmt.Errorf("task %d: title must not be empty", t.ID)
		}
		if t.Status == "" {
			t.Status = StatusPending
		} else {
			s, err := ParseStatus(string(t.Status))
			if err != nil {
				return fmt.Errorf("task %d: %w", t.ID, err)
			}
			t.Status = s
		}
		p, err := ParsePriority(string(t.Priority))
		if err != nil {
			return fmt.Errorf("task %d: %w", t.ID, err)
		}
		t.Priority = p
		seenSubs := make(map[int]bool, len(t.Subtasks))
		for j := range t.Subtasks {
			st := &t.Subtasks[j]
			if st.ID <= 0 {
				return fmt.Errorf("task %d: subtask %q: id must be a positive integer", t.ID, st.Title)
			}
			if seenSubs[st.ID] {
				return fmt.Errorf("task %d: subtask id %d appears more than once", t.ID, st.ID)
			}
			seenSubs[st.ID] = true
			if st.Status == "" {
				st.Status = SubtaskPending
			} else if !st.Status.Valid() {
				if st.Status == "done" {
					st.Status = SubtaskCompleted
				} else {
					return fmt.Errorf("task %d: subtask %d: unknown status %q", t.ID, st.ID, st.Status)
				}
			}
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
	}
	if c.NextID <= maxID {
		c.NextID = maxID + 1
	}
	if c.NextID < 1 {
		c.NextID = 1
	}
	return nil
}
