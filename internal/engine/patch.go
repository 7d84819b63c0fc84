package engine

import (
	"strings"
	"time"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// Manual updates may touch descriptive fields, effort estimates, and
// the status/priority enums. Dependency edges and subtasks have
// dedicated operations so the graph is always re-validated when they
// change.
var dedicatedFields = map[string]string{
	"dependencies": "use add-dep / remove-dep",
	"subtasks":     "use expand / set-status",
}

// applyManualPatch writes the provided fields onto the task. Unknown
// keys and keys with dedicated operations are rejected before anything
// is modified.
func applyManualPatch(t *models.Task, fields map[string]string, now time.Time) error {
	if len(fields) == 0 {
		return errf(CodeValidation, "no fields to update")
	}

	for key := range fields {
		if hint, ok := dedicatedFields[key]; ok {
			return errf(CodeValidation, "field %q cannot be set directly; %s", key, hint)
		}
		switch key {
		case "title", "description", "details", "test_strategy",
			"estimated_effort", "actual_effort", "priority", "status":
		default:
			return errf(CodeValidation, "unknown field %q", key)
		}
	}

	for key, value := range fields {
		switch key {
		case "title":
			if strings.TrimSpace(value) == "" {
				return errf(CodeValidation, "title must not be empty")
			}
			t.Title = value
		case "description":
			t.Description = value
		case "details":
			t.Details = value
		case "test_strategy":
			t.TestStrategy = value
		case "estimated_effort":
			t.EstimatedEffort = value
		case "actual_effort":
			t.ActualEffort = value
		case "priority":
			p, err := models.ParsePriority(value)
			if err != nil {
				return errf(CodeValidation, "%v", err)
			}
			t.Priority = p
		case "status":
			s, err := models.ParseStatus(value)
			if err != nil {
				return errf(CodeValidation, "%v", err)
			}
			t.Status = s
		}
	}

	t.UpdatedAt = now
	return nil
}

// aiPatch is the structured response shape for AI-driven updates.
// Pointer fields distinguish "leave alone" from "set to empty".
type aiPatch struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Details      *string `json:"details"`
	TestStrategy *string `json:"test_strategy"`
	NoChange     bool    `json:"no_change"`
	Reason       string  `json:"reason"`
}

func (p aiPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Details == nil && p.TestStrategy == nil
}

// apply writes the patch onto the task and bumps UpdatedAt.
func (p aiPatch) apply(t *models.Task, now time.Time) error {
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return errf(CodeValidation, "provider patch set an empty title")
		}
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Details != nil {
		t.Details = *p.Details
	}
	if p.TestStrategy != nil {
		t.TestStrategy = *p.TestStrategy
	}
	t.UpdatedAt = now
	return nil
}

// parseSubtaskStatus maps user input onto the two-state subtask enum.
// "done" is accepted as a spelling of completed, matching collection
// normalization.
func parseSubtaskStatus(raw string) (models.SubtaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return models.SubtaskPending, nil
	case "completed", "done":
		return models.SubtaskCompleted, nil
	default:
		return "", errf(CodeValidation, "subtask status must be pending or completed, got %q", raw)
	}
}
