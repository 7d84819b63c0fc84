// Package complexity scores tasks on a 1-10 scale from their observable
// structure and optionally refines the score with an AI research pass.
// The deterministic score always stands on its own; research can shift
// it but a failed research call never fails the analysis.
package complexity

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/gantry/internal/ai"
	"github.com/ShayCichocki/gantry/pkg/models"
)

const (
	// DefaultThreshold is the score at which expansion is recommended.
	DefaultThreshold = 5
	// DefaultWorkers bounds concurrent research calls in batch mode.
	DefaultWorkers = 3

	maxScore = 10
	minScore = 1
)

// markers are case-insensitive substrings in a task's text that signal
// technically involved work. Each distinct hit raises the score, capped
// at three.
var markers = []string{
	"migration",
	"concurren",
	"distributed",
	"transaction",
	"encrypt",
	"protocol",
	"refactor",
	"integrat",
	"performance",
	"database",
	"schema",
	"authenticat",
	"cache",
	"queue",
	"websocket",
	"replicat",
	"consensus",
	"index",
	"backward compat",
	"race",
}

// Runner is the slice of the AI orchestrator the analyzer needs.
type Runner interface {
	Run(ctx context.Context, role ai.Role, spec ai.PromptSpec) (*ai.Result, error)
}

// Options control a single analysis run.
type Options struct {
	// Threshold is the expand-recommendation cutoff. It moves the
	// recommendation boundary only; level bands are fixed.
	Threshold int
	// Research augments the deterministic score with an AI estimate.
	Research bool
}

func (o Options) threshold() int {
	if o.Threshold <= 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// Analyzer scores tasks. The runner may be nil, in which case research
// requests degrade to deterministic-only results.
type Analyzer struct {
	runner  Runner
	workers int
}

// New builds an analyzer. workers bounds batch concurrency; values
// below one fall back to the default.
func New(runner Runner, workers int) *Analyzer {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Analyzer{runner: runner, workers: workers}
}

// Score computes the deterministic 1-10 score and the factor rows that
// produced it. It never consults a provider.
func Score(task models.Task) (int, []models.ComplexityFactor) {
	factors := make([]models.ComplexityFactor, 0, 5)

	subtaskWeight := bucket(len(task.Subtasks), 1, 3, 6)
	factors = append(factors, models.ComplexityFactor{
		Name:   "subtasks",
		Detail: fmt.Sprintf("%d subtasks", len(task.Subtasks)),
		Weight: subtaskWeight,
	})

	depWeight := bucket(len(task.Dependencies), 1, 3, 5)
	factors = append(factors, models.ComplexityFactor{
		Name:   "dependencies",
		Detail: fmt.Sprintf("%d dependencies", len(task.Dependencies)),
		Weight: depWeight,
	})

	textLen := len(task.Description) + len(task.Details)
	descWeight := bucket(textLen, 80, 240, 600)
	factors = append(factors, models.ComplexityFactor{
		Name:   "description",
		Detail: fmt.Sprintf("%d chars of description and details", textLen),
		Weight: descWeight,
	})

	hits := markerHits(task)
	termWeight := len(hits)
	if termWeight > 3 {
		termWeight = 3
	}
	termDetail := "no technical markers"
	if len(hits) > 0 {
		termDetail = "markers: " + strings.Join(hits, ", ")
	}
	factors = append(factors, models.ComplexityFactor{
		Name:   "technical terms",
		Detail: termDetail,
		Weight: termWeight,
	})

	effortWeight := 0
	effortDetail := "effort estimated at " + task.EstimatedEffort
	if task.EstimatedEffort == "" {
		effortWeight = 1
		effortDetail = "no effort estimate"
	}
	factors = append(factors, models.ComplexityFactor{
		Name:   "effort estimate",
		Detail: effortDetail,
		Weight: effortWeight,
	})

	score := 1
	for _, f := range factors {
		score += f.Weight
	}
	return clampScore(score), factors
}

// bucket maps a count onto the 0-3 weight scale with the given band
// lower bounds.
func bucket(n, low, mid, high int) int {
	switch {
	case n >= high:
		return 3
	case n >= mid:
		return 2
	case n >= low:
		return 1
	default:
		return 0
	}
}

// markerHits returns the distinct markers present in the task's text,
// in marker-list order.
func markerHits(task models.Task) []string {
	text := strings.ToLower(task.Title + " " + task.Description + " " + task.Details)
	var hits []string
	for _, m := range markers {
		if strings.Contains(text, m) {
			hits = append(hits, m)
		}
	}
	return hits
}

func clampScore(score int) int {
	if score > maxScore {
		return maxScore
	}
	if score < minScore {
		return minScore
	}
	return score
}

// RecommendedSubtasks sizes an expansion for a given score.
func RecommendedSubtasks(score int) int {
	n := score - 2
	if n < 3 {
		n = 3
	}
	if n > 8 {
		n = 8
	}
	return n
}

// AnalyzeTask scores one task. With research enabled the deterministic
// score is blended with an AI estimate; any provider failure leaves the
// deterministic result standing and is noted on the entry.
func (a *Analyzer) AnalyzeTask(ctx context.Context, task models.Task, opts Options) models.ComplexityEntry {
	score, factors := Score(task)

	entry := models.ComplexityEntry{
		TaskID:  task.ID,
		Title:   task.Title,
		Score:   score,
		Factors: factors,
	}

	if opts.Research {
		a.refine(ctx, task, &entry)
	}

	entry.Level = models.LevelForScore(entry.Score)
	a.recommend(task, &entry, opts.threshold())
	return entry
}

// refine runs the research-role call and folds its estimate into the
// entry. Failures only annotate the entry.
func (a *Analyzer) refine(ctx context.Context, task models.Task, entry *models.ComplexityEntry) {
	if a.runner == nil {
		entry.ResearchNote = "research skipped: no AI orchestrator configured"
		return
	}

	res, err := a.runner.Run(ctx, ai.RoleResearch, researchPrompt(task, entry.Score))
	if err != nil {
		entry.ResearchNote = fmt.Sprintf("research skipped: %v", err)
		return
	}

	var verdict struct {
		Score     int    `json:"score"`
		Reasoning string `json:"reasoning"`
	}
	if err := res.Structured(&verdict); err != nil {
		entry.ResearchNote = fmt.Sprintf("research skipped: %v", err)
		return
	}

	aiScore := clampScore(verdict.Score)
	blended := clampScore((entry.Score + aiScore + 1) / 2)
	entry.Factors = append(entry.Factors, models.ComplexityFactor{
		Name:   "research",
		Detail: fmt.Sprintf("model scored %d/10", aiScore),
		Weight: blended - entry.Score,
	})
	entry.Score = blended
	entry.ResearchNote = verdict.Reasoning
}

// recommend fills the advisory fields. The threshold moves only the
// expansion cutoff.
func (a *Analyzer) recommend(task models.Task, entry *models.ComplexityEntry, threshold int) {
	if entry.Score >= threshold {
		entry.RecommendedSubtasks = RecommendedSubtasks(entry.Score)
		entry.ExpandCommand = fmt.Sprintf("gantry expand --id=%d --num=%d", task.ID, entry.RecommendedSubtasks)
		entry.Recommendations = append(entry.Recommendations,
			fmt.Sprintf("break this task into %d subtask(s)", entry.RecommendedSubtasks))
	}
	if task.TestStrategy == "" {
		entry.Recommendations = append(entry.Recommendations, "add a test strategy before starting work")
	}
	if len(task.Description)+len(task.Details) >= 600 && len(task.Subtasks) == 0 {
		entry.Recommendations = append(entry.Recommendations, "long description with no subtasks; consider splitting")
	}
}

// researchPrompt asks the research role for a second opinion on the
// deterministic score. The reply must be a JSON object.
func researchPrompt(task models.Task, deterministic int) ai.PromptSpec {
	var b strings.Builder
	fmt.Fprintf(&b, "Rate the implementation complexity of this task from 1 to 10.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", task.Description)
	}
	if task.Details != "" {
		fmt.Fprintf(&b, "Details: %s\n", task.Details)
	}
	fmt.Fprintf(&b, "Dependencies: %d\n", len(task.Dependencies))
	fmt.Fprintf(&b, "Existing subtasks: %d\n", len(task.Subtasks))
	fmt.Fprintf(&b, "\nA structural first pass scored it %d/10.\n", deterministic)
	fmt.Fprintf(&b, "Respond with a JSON object: {\"score\": <integer 1-10>, \"reasoning\": \"<one sentence>\"}")

	return ai.PromptSpec{
		System: "You are an engineering effort estimator. Reply with JSON only.",
		Prompt: b.String(),
		Shape:  ai.ShapeStructured,
	}
}
