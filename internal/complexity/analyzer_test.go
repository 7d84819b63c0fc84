package complexity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/gantry/internal/ai"
	"github.com/ShayCichocki/gantry/pkg/models"
)

type runnerFunc func(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error)

func (f runnerFunc) Run(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error) {
	return f(ctx, role, spec)
}

func structuredResult(payload string) *ai.Result {
	return &ai.Result{Kind: ai.ShapeStructured, Text: payload, Payload: json.RawMessage(payload)}
}

// filler produces neutral text of the given length that trips no
// technical markers.
func filler(n int) string {
	return strings.Repeat("alpha beta gamma ", n/17+1)[:n]
}

func TestScoreTrivialTask(t *testing.T) {
	task := models.Task{ID: 1, Title: "Tidy the readme", EstimatedEffort: "1h"}
	score, factors := Score(task)
	if score != 1 {
		t.Errorf("expected score 1, got %d", score)
	}
	if len(factors) != 5 {
		t.Errorf("expected 5 factor rows, got %d", len(factors))
	}
	for _, f := range factors {
		if f.Weight != 0 {
			t.Errorf("factor %s should contribute 0, got %d", f.Name, f.Weight)
		}
	}
}

func TestScoreMissingEffortAddsOne(t *testing.T) {
	task := models.Task{ID: 1, Title: "Tidy the readme"}
	score, _ := Score(task)
	if score != 2 {
		t.Errorf("expected score 2 without effort estimate, got %d", score)
	}
}

func TestScoreFactorBuckets(t *testing.T) {
	cases := []struct {
		name string
		task models.Task
		want int
	}{
		{"two deps", models.Task{Title: "t", Dependencies: []int{1, 2}, EstimatedEffort: "1h"}, 2},
		{"four deps", models.Task{Title: "t", Dependencies: []int{1, 2, 3, 4}, EstimatedEffort: "1h"}, 3},
		{"five deps", models.Task{Title: "t", Dependencies: []int{1, 2, 3, 4, 5}, EstimatedEffort: "1h"}, 4},
		{"three subtasks", models.Task{Title: "t", Subtasks: make([]models.Subtask, 3), EstimatedEffort: "1h"}, 3},
		{"six subtasks", models.Task{Title: "t", Subtasks: make([]models.Subtask, 6), EstimatedEffort: "1h"}, 4},
		{"medium description", models.Task{Title: "t", Description: filler(100), EstimatedEffort: "1h"}, 2},
		{"long description", models.Task{Title: "t", Description: filler(300), EstimatedEffort: "1h"}, 3},
		{"huge description", models.Task{Title: "t", Description: filler(400), Details: filler(300), EstimatedEffort: "1h"}, 4},
		{"one marker", models.Task{Title: "Run the migration", EstimatedEffort: "1h"}, 2},
		{"two markers", models.Task{Title: "Database migration", EstimatedEffort: "1h"}, 3},
		{"many markers", models.Task{Title: "Encrypted cache queue with replication", EstimatedEffort: "1h"}, 4},
	}
	for _, tc := range cases {
		score, _ := Score(tc.task)
		if score != tc.want {
			t.Errorf("%s: score = %d, want %d", tc.name, score, tc.want)
		}
	}
}

func TestScoreMarkerHitsAreDistinct(t *testing.T) {
	// The same marker repeated counts once.
	task := models.Task{Title: "cache the cache in a cache", EstimatedEffort: "1h"}
	score, factors := Score(task)
	if score != 2 {
		t.Errorf("expected score 2, got %d", score)
	}
	var marker models.ComplexityFactor
	for _, f := range factors {
		if f.Name == "technical terms" {
			marker = f
		}
	}
	if marker.Weight != 1 {
		t.Errorf("expected marker weight 1, got %d", marker.Weight)
	}
}

func TestScoreClampsAtTen(t *testing.T) {
	task := models.Task{
		Title:        "Distributed database migration with encrypted cache",
		Description:  filler(700),
		Dependencies: []int{1, 2, 3, 4, 5},
		Subtasks:     make([]models.Subtask, 6),
	}
	score, _ := Score(task)
	if score != 10 {
		t.Errorf("expected clamped score 10, got %d", score)
	}
}

func TestRecommendedSubtasksBounds(t *testing.T) {
	for score, want := range map[int]int{3: 3, 5: 3, 6: 4, 8: 6, 10: 8} {
		if got := RecommendedSubtasks(score); got != want {
			t.Errorf("RecommendedSubtasks(%d) = %d, want %d", score, got, want)
		}
	}
}

// mediumTask scores exactly 5: two deps (1), three subtasks (2),
// missing effort (1), plus the base point.
func mediumTask() models.Task {
	return models.Task{
		ID:           7,
		Title:        "Wire the widget",
		Dependencies: []int{1, 2},
		Subtasks:     make([]models.Subtask, 3),
	}
}

func TestAnalyzeTaskThresholdMovesRecommendationOnly(t *testing.T) {
	a := New(nil, 0)

	atDefault := a.AnalyzeTask(context.Background(), mediumTask(), Options{})
	if atDefault.Score != 5 || atDefault.Level != models.ComplexityMedium {
		t.Fatalf("unexpected baseline %d/%s", atDefault.Score, atDefault.Level)
	}
	if atDefault.ExpandCommand != "gantry expand --id=7 --num=3" {
		t.Errorf("unexpected expand command %q", atDefault.ExpandCommand)
	}

	raised := a.AnalyzeTask(context.Background(), mediumTask(), Options{Threshold: 6})
	if raised.Level != models.ComplexityMedium {
		t.Errorf("threshold must not move the level band, got %s", raised.Level)
	}
	if raised.ExpandCommand != "" || raised.RecommendedSubtasks != 0 {
		t.Errorf("raised threshold should drop the expand recommendation: %+v", raised)
	}
}

func TestAnalyzeTaskFlagsMissingTestStrategy(t *testing.T) {
	a := New(nil, 0)
	entry := a.AnalyzeTask(context.Background(), models.Task{ID: 1, Title: "t", EstimatedEffort: "1h"}, Options{})
	found := false
	for _, r := range entry.Recommendations {
		if strings.Contains(r, "test strategy") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a test-strategy recommendation, got %v", entry.Recommendations)
	}
}

func TestAnalyzeTaskResearchBlendsScore(t *testing.T) {
	var gotRole ai.Role
	var gotShape ai.Shape
	runner := runnerFunc(func(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error) {
		gotRole = role
		gotShape = spec.Shape
		return structuredResult(`{"score": 9, "reasoning": "hidden coupling with the scheduler"}`), nil
	})
	a := New(runner, 0)

	// Deterministic score 2 (missing effort only).
	entry := a.AnalyzeTask(context.Background(), models.Task{ID: 3, Title: "Small tweak"}, Options{Research: true})

	if gotRole != ai.RoleResearch {
		t.Errorf("expected the research role, got %s", gotRole)
	}
	if gotShape != ai.ShapeStructured {
		t.Errorf("expected a structured prompt, got %s", gotShape)
	}
	// round((2+9)/2) = 6
	if entry.Score != 6 {
		t.Errorf("expected blended score 6, got %d", entry.Score)
	}
	if entry.Level != models.ComplexityMedium {
		t.Errorf("level should follow the blended score, got %s", entry.Level)
	}
	if entry.ResearchNote != "hidden coupling with the scheduler" {
		t.Errorf("unexpected research note %q", entry.ResearchNote)
	}

	last := entry.Factors[len(entry.Factors)-1]
	if last.Name != "research" || last.Weight != 4 {
		t.Errorf("expected research factor with weight 4, got %+v", last)
	}
}

func TestAnalyzeTaskResearchFailureFallsBack(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error) {
		return nil, errors.New("provider down")
	})
	a := New(runner, 0)

	entry := a.AnalyzeTask(context.Background(), mediumTask(), Options{Research: true})
	if entry.Score != 5 {
		t.Errorf("deterministic score should stand, got %d", entry.Score)
	}
	if !strings.Contains(entry.ResearchNote, "research skipped") {
		t.Errorf("expected a skip note, got %q", entry.ResearchNote)
	}
}

func TestAnalyzeTaskResearchWithoutRunner(t *testing.T) {
	a := New(nil, 0)
	entry := a.AnalyzeTask(context.Background(), mediumTask(), Options{Research: true})
	if entry.Score != 5 {
		t.Errorf("deterministic score should stand, got %d", entry.Score)
	}
	if !strings.Contains(entry.ResearchNote, "research skipped") {
		t.Errorf("expected a skip note, got %q", entry.ResearchNote)
	}
}

func TestAnalyzeTaskResearchClampsWildScores(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error) {
		return structuredResult(`{"score": 42, "reasoning": "everything is hard"}`), nil
	})
	a := New(runner, 0)

	entry := a.AnalyzeTask(context.Background(), models.Task{ID: 3, Title: "Small tweak"}, Options{Research: true})
	// AI score clamps to 10; round((2+10)/2) = 6.
	if entry.Score != 6 {
		t.Errorf("expected blended score 6, got %d", entry.Score)
	}
}
