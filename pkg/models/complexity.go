package models

import "time"

// ComplexityLevel is the qualitative band for a complexity score.
type ComplexityLevel string

const (
	// ComplexityLow covers scores below 5.
	ComplexityLow ComplexityLevel = "low"
	// ComplexityMedium covers scores 5 through 7.
	ComplexityMedium ComplexityLevel = "medium"
	// ComplexityHigh covers a score of exactly 8.
	ComplexityHigh ComplexityLevel = "high"
	// ComplexityVeryHigh covers scores 9 and 10.
	ComplexityVeryHigh ComplexityLevel = "very-high"
)

// LevelForScore maps a clamped 1-10 score to its level band.
func LevelForScore(score int) ComplexityLevel {
	switch {
	case score < 5:
		return ComplexityLow
	case score <= 7:
		return ComplexityMedium
	case score == 8:
		return ComplexityHigh
	default:
		return ComplexityVeryHigh
	}
}

// ComplexityFactor is one scored contribution to a task's complexity.
type ComplexityFactor struct {
	// Name identifies the factor (subtasks, dependencies, ...).
	Name string `json:"name" yaml:"name"`
	// Detail describes what was observed, e.g. "4 dependencies".
	Detail string `json:"detail" yaml:"detail"`
	// Weight is the points this factor contributed to the score.
	Weight int `json:"weight" yaml:"weight"`
}

// ComplexityEntry is the analysis result for a single task.
type ComplexityEntry struct {
	// TaskID identifies the analyzed task.
	TaskID int `json:"task_id" yaml:"task_id"`
	// Title is the task title at analysis time.
	Title string `json:"title" yaml:"title"`
	// Score is the final 1-10 complexity score.
	Score int `json:"score" yaml:"score"`
	// Level is the qualitative band for Score.
	Level ComplexityLevel `json:"level" yaml:"level"`
	// Factors lists every contribution that produced Score.
	Factors []ComplexityFactor `json:"factors" yaml:"factors"`
	// Recommendations are advisory follow-ups for this task.
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	// RecommendedSubtasks is the suggested expansion size, zero when
	// expansion is not recommended.
	RecommendedSubtasks int `json:"recommended_subtasks,omitempty" yaml:"recommended_subtasks,omitempty"`
	// ExpandCommand is a ready-to-run CLI invocation for the
	// recommended expansion, empty when expansion is not recommended.
	ExpandCommand string `json:"expand_command,omitempty" yaml:"expand_command,omitempty"`
	// ResearchNote records research-mode refinement or why it was
	// skipped; empty when research was not requested.
	ResearchNote string `json:"research_note,omitempty" yaml:"research_note,omitempty"`
}

// ComplexitySummary buckets entry counts for a whole report.
// Very-high entries count toward High.
type ComplexitySummary struct {
	// HighCount is the number of entries scoring 8 or above.
	HighCount int `json:"high_count" yaml:"high_count"`
	// MediumCount is the number of entries scoring 5 through 7.
	MediumCount int `json:"medium_count" yaml:"medium_count"`
	// LowCount is the number of entries scoring below 5.
	LowCount int `json:"low_count" yaml:"low_count"`
}

// ComplexityReport is the batch analysis result, one entry per task
// in input order.
type ComplexityReport struct {
	// GeneratedAt is when the analysis ran.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	// Tag optionally labels the project or run.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
	// Threshold is the expand-recommendation cutoff used for this run.
	Threshold int `json:"threshold" yaml:"threshold"`
	// Research reports whether research-mode refinement was requested.
	Research bool `json:"research" yaml:"research"`
	// Entries holds one row per analyzed task, in input order.
	Entries []ComplexityEntry `json:"entries" yaml:"entries"`
	// Summary buckets the entries by level band.
	Summary ComplexitySummary `json:"summary" yaml:"summary"`
}

// Summarize recomputes the summary buckets from the entries.
func (r *ComplexityReport) Summarize() {
	var s ComplexitySummary
	for _, e := range r.Entries {
		switch {
		case e.Score >= 8:
			s.HighCount++
		case e.Score >= 5:
			s.MediumCount++
		default:
			s.LowCount++
		}
	}
	r.Summary = s
}
