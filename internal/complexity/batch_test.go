package complexity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/gantry/internal/ai"
	"github.com/ShayCichocki/gantry/pkg/models"
)

func testCollection(tasks ...models.Task) *models.Collection {
	c := models.NewCollection()
	for _, t := range tasks {
		if t.Status == "" {
			t.Status = models.StatusPending
		}
		if t.Priority == "" {
			t.Priority = models.PriorityMedium
		}
		c.Tasks = append(c.Tasks, t)
		if t.ID >= c.NextID {
			c.NextID = t.ID + 1
		}
	}
	return c
}

func TestAnalyzeBatchRowsFollowSelectionOrder(t *testing.T) {
	c := testCollection(
		models.Task{ID: 1, Title: "One"},
		models.Task{ID: 2, Title: "Two"},
		models.Task{ID: 3, Title: "Three"},
		models.Task{ID: 4, Title: "Four"},
	)
	a := New(nil, 2)

	sel, err := ParseSelection("4,1,3")
	if err != nil {
		t.Fatalf("ParseSelection failed: %v", err)
	}
	report, err := a.AnalyzeBatch(context.Background(), c, sel, Options{})
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}

	want := []int{4, 1, 3}
	if len(report.Entries) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(report.Entries))
	}
	for i, id := range want {
		if report.Entries[i].TaskID != id {
			t.Errorf("row %d: expected task %d, got %d", i, id, report.Entries[i].TaskID)
		}
	}
}

func TestAnalyzeBatchIsolatesResearchFailure(t *testing.T) {
	c := testCollection(
		models.Task{ID: 1, Title: "One"},
		models.Task{ID: 2, Title: "Two"},
		models.Task{ID: 3, Title: "Three"},
	)
	runner := runnerFunc(func(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error) {
		if strings.Contains(spec.Prompt, "Title: Two") {
			return nil, errors.New("provider exploded")
		}
		return structuredResult(`{"score": 8, "reasoning": "gnarly"}`), nil
	})
	a := New(runner, 2)

	report, err := a.AnalyzeBatch(context.Background(), c, Selection{All: true}, Options{Research: true})
	if err != nil {
		t.Fatalf("one row's failure must not abort the batch: %v", err)
	}
	if len(report.Entries) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(report.Entries))
	}

	// Rows 1 and 3 blend with the AI score; row 2 stays deterministic.
	// All three tasks are deterministic score 2 (missing effort only).
	if report.Entries[0].Score != 5 || report.Entries[2].Score != 5 {
		t.Errorf("refined rows should blend to 5, got %d and %d",
			report.Entries[0].Score, report.Entries[2].Score)
	}
	failed := report.Entries[1]
	if failed.TaskID != 2 {
		t.Fatalf("expected row 2 in position 1, got task %d", failed.TaskID)
	}
	if failed.Score != 2 {
		t.Errorf("failed row should keep the deterministic score, got %d", failed.Score)
	}
	if !strings.Contains(failed.ResearchNote, "research skipped") {
		t.Errorf("failed row should note the skip, got %q", failed.ResearchNote)
	}
}

func TestAnalyzeBatchBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	cur, peak := 0, 0
	runner := runnerFunc(func(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error) {
		mu.Lock()
		cur++
		if cur > peak {
			peak = cur
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		cur--
		mu.Unlock()
		return structuredResult(`{"score": 5, "reasoning": "ok"}`), nil
	})

	tasks := make([]models.Task, 0, 6)
	for i := 1; i <= 6; i++ {
		tasks = append(tasks, models.Task{ID: i, Title: "Task"})
	}
	a := New(runner, 2)

	if _, err := a.AnalyzeBatch(context.Background(), testCollection(tasks...), Selection{All: true}, Options{Research: true}); err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("worker pool leaked: %d concurrent research calls", peak)
	}
	if peak == 0 {
		t.Error("research calls never ran")
	}
}

func TestAnalyzeBatchSummaryBuckets(t *testing.T) {
	c := testCollection(
		// Score 1: effort present, nothing else.
		models.Task{ID: 1, Title: "Trivial", EstimatedEffort: "1h"},
		// Score 5: two deps, three subtasks, missing effort.
		models.Task{ID: 2, Title: "Middling", Dependencies: []int{1, 3}, Subtasks: make([]models.Subtask, 3)},
		// Score 10 clamped: everything maxed.
		models.Task{
			ID:           3,
			Title:        "Distributed database migration with encrypted cache",
			Description:  filler(700),
			Dependencies: []int{1, 2, 4, 5, 6},
			Subtasks:     make([]models.Subtask, 6),
		},
		models.Task{ID: 4, Title: "Also trivial", EstimatedEffort: "2h"},
		models.Task{ID: 5, Title: "Spare", EstimatedEffort: "1h"},
		models.Task{ID: 6, Title: "Spare too", EstimatedEffort: "1h"},
	)
	a := New(nil, 0)

	report, err := a.AnalyzeBatch(context.Background(), c, Selection{IDs: []int{1, 2, 3, 4}}, Options{Threshold: 7})
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}

	s := report.Summary
	if s.HighCount != 1 || s.MediumCount != 1 || s.LowCount != 2 {
		t.Errorf("unexpected summary %+v", s)
	}
	if report.Threshold != 7 {
		t.Errorf("report should record the threshold, got %d", report.Threshold)
	}
	if report.Research {
		t.Error("research flag should be off")
	}
	if report.GeneratedAt.IsZero() {
		t.Error("report should be timestamped")
	}
}

func TestAnalyzeBatchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(nil, 2)
	c := testCollection(models.Task{ID: 1, Title: "One"}, models.Task{ID: 2, Title: "Two"})

	if _, err := a.AnalyzeBatch(ctx, c, Selection{All: true}, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyzeBatchEmptySelection(t *testing.T) {
	a := New(nil, 0)
	c := testCollection(models.Task{ID: 1, Title: "One"})

	if _, err := a.AnalyzeBatch(context.Background(), c, Selection{From: 10, To: 20}, Options{}); err == nil {
		t.Fatal("expected error for an empty selection")
	}
}
