package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// UpdateManual applies the provided fields to one task. Only
// descriptive fields, effort estimates, status, and priority may be
// set this way.
func (e *Engine) UpdateManual(ctx context.Context, id int, fields map[string]string) *Result {
	o := e.begin("update")
	var updated models.Task

	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		t := c.Find(id)
		if t == nil {
			return errf(CodeNotFound, "task %d not found", id)
		}

		o.state("COMPUTING")
		if err := applyManualPatch(t, fields, time.Now().UTC()); err != nil {
			return err
		}

		o.state("VALIDATING")
		if err := validateGraph(c); err != nil {
			return err
		}
		updated = *t
		return nil
	})
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&updated)
}

// SetStatus moves a task or a "parent.sub" subtask to a new status.
func (e *Engine) SetStatus(ctx context.Context, ref string, status string) *Result {
	o := e.begin("set-status")
	var updated models.Task

	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		now := time.Now().UTC()

		o.state("COMPUTING")
		if strings.Contains(ref, ".") {
			taskID, subID, err := models.ParseSubtaskRef(ref)
			if err != nil {
				return errf(CodeValidation, "%v", err)
			}
			parent := c.Find(taskID)
			if parent == nil {
				return errf(CodeNotFound, "task %d not found", taskID)
			}
			sub := parent.Subtask(subID)
			if sub == nil {
				return errf(CodeNotFound, "subtask %s not found", ref)
			}
			st, err := parseSubtaskStatus(status)
			if err != nil {
				return err
			}
			sub.Status = st
			parent.UpdatedAt = now
			updated = *parent
		} else {
			id, err := strconv.Atoi(strings.TrimSpace(ref))
			if err != nil {
				return errf(CodeValidation, "invalid task reference %q", ref)
			}
			t := c.Find(id)
			if t == nil {
				return errf(CodeNotFound, "task %d not found", id)
			}
			st, err := models.ParseStatus(status)
			if err != nil {
				return errf(CodeValidation, "%v", err)
			}
			t.Status = st
			t.UpdatedAt = now
			updated = *t
		}

		o.state("VALIDATING")
		return validateGraph(c)
	})
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&updated)
}

// AddRequest is the draft for a new task.
type AddRequest struct {
	Title           string
	Description     string
	Details         string
	TestStrategy    string
	EstimatedEffort string
	Priority        string
	Dependencies    []int
}

// Add creates a task with an allocator-assigned id. Initial
// dependencies are validated like any edge change.
func (e *Engine) Add(ctx context.Context, req AddRequest) *Result {
	o := e.begin("add")
	var created models.Task

	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		if strings.TrimSpace(req.Title) == "" {
			return errf(CodeValidation, "title must not be empty")
		}
		priority := models.PriorityMedium
		if req.Priority != "" {
			p, err := models.ParsePriority(req.Priority)
			if err != nil {
				return errf(CodeValidation, "%v", err)
			}
			priority = p
		}

		o.state("COMPUTING")
		now := time.Now().UTC()
		id, err := c.Add(models.Task{
			Title:           req.Title,
			Description:     req.Description,
			Details:         req.Details,
			TestStrategy:    req.TestStrategy,
			EstimatedEffort: req.EstimatedEffort,
			Priority:        priority,
			Status:          models.StatusPending,
			Dependencies:    append([]int(nil), req.Dependencies...),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return errf(CodeValidation, "%v", err)
		}

		o.state("VALIDATING")
		if err := validateGraph(c); err != nil {
			return err
		}
		created = *c.Find(id)
		return nil
	})
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&created)
}

// DeleteSummary reports what a delete removed.
type DeleteSummary struct {
	// Task is the removed task as it was stored.
	Task models.Task `json:"task"`
	// StrippedFrom lists the tasks whose dependency lists referenced
	// the removed task.
	StrippedFrom []int `json:"stripped_from,omitempty"`
}

// Delete removes a task, its subtasks with it, and strips every
// inbound dependency reference so the graph stays closed.
func (e *Engine) Delete(ctx context.Context, id int) *Result {
	o := e.begin("delete")
	var summary DeleteSummary

	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		t := c.Find(id)
		if t == nil {
			return errf(CodeNotFound, "task %d not found", id)
		}
		summary.Task = *t

		o.state("COMPUTING")
		now := time.Now().UTC()
		for i := range c.Tasks {
			other := &c.Tasks[i]
			if other.ID == id || !other.HasDependency(id) {
				continue
			}
			deps := other.Dependencies[:0]
			for _, d := range other.Dependencies {
				if d != id {
					deps = append(deps, d)
				}
			}
			other.Dependencies = deps
			other.UpdatedAt = now
			summary.StrippedFrom = append(summary.StrippedFrom, other.ID)
		}
		c.Remove(id)

		o.state("VALIDATING")
		return validateGraph(c)
	})
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&summary)
}

// AddDependency adds the edge id -> depID after proving the graph stays
// valid. A violating edge is never committed.
func (e *Engine) AddDependency(ctx context.Context, id, depID int) *Result {
	o := e.begin("add-dep")
	var updated models.Task

	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		t := c.Find(id)
		if t == nil {
			return errf(CodeNotFound, "task %d not found", id)
		}
		if c.Find(depID) == nil {
			return errf(CodeNotFound, "dependency target %d not found", depID)
		}

		o.state("COMPUTING")
		if id == depID {
			return errf(CodeValidation, "task %d cannot depend on itself", id)
		}
		if t.HasDependency(depID) {
			return errf(CodeValidation, "task %d already depends on task %d", id, depID)
		}
		t.Dependencies = append(t.Dependencies, depID)
		t.UpdatedAt = time.Now().UTC()

		o.state("VALIDATING")
		if err := validateGraph(c); err != nil {
			return err
		}
		updated = *t
		return nil
	})
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&updated)
}

// RemoveDependency drops the edge id -> depID.
func (e *Engine) RemoveDependency(ctx context.Context, id, depID int) *Result {
	o := e.begin("remove-dep")
	var updated models.Task

	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		t := c.Find(id)
		if t == nil {
			return errf(CodeNotFound, "task %d not found", id)
		}
		if !t.HasDependency(depID) {
			return errf(CodeNotFound, "task %d does not depend on task %d", id, depID)
		}

		o.state("COMPUTING")
		deps := t.Dependencies[:0]
		for _, d := range t.Dependencies {
			if d != depID {
				deps = append(deps, d)
			}
		}
		t.Dependencies = deps
		t.UpdatedAt = time.Now().UTC()

		o.state("VALIDATING")
		if err := validateGraph(c); err != nil {
			return err
		}
		updated = *t
		return nil
	})
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&updated)
}
