package complexity

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/gantry/pkg/models"
)

func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(tag string, generated time.Time) *models.ComplexityReport {
	r := &models.ComplexityReport{
		GeneratedAt: generated,
		Tag:         tag,
		Threshold:   5,
		Research:    true,
		Entries: []models.ComplexityEntry{
			{TaskID: 1, Title: "One", Score: 8, Level: models.ComplexityHigh},
			{TaskID: 2, Title: "Two", Score: 3, Level: models.ComplexityLow},
		},
	}
	r.Summarize()
	return r
}

func TestHistorySaveAndGetReport(t *testing.T) {
	s := openTestHistory(t)

	saved := sampleReport("sprint-12", time.Now().UTC().Truncate(time.Second))
	id, err := s.SaveReport(saved)
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a run id")
	}

	got, err := s.GetReport(id)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if got.Tag != "sprint-12" || got.Threshold != 5 || !got.Research {
		t.Errorf("unexpected report header %+v", got)
	}
	if len(got.Entries) != 2 || got.Entries[0].Score != 8 {
		t.Errorf("unexpected entries %+v", got.Entries)
	}
	if got.Summary.HighCount != 1 || got.Summary.LowCount != 1 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
}

func TestHistoryGetReportByPrefix(t *testing.T) {
	s := openTestHistory(t)

	id, err := s.SaveReport(sampleReport("x", time.Now().UTC()))
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	got, err := s.GetReport(id[:8])
	if err != nil {
		t.Fatalf("GetReport by prefix failed: %v", err)
	}
	if got.Tag != "x" {
		t.Errorf("unexpected report %+v", got)
	}
}

func TestHistoryGetReportAmbiguousPrefix(t *testing.T) {
	s := openTestHistory(t)

	if _, err := s.SaveReport(sampleReport("a", time.Now().UTC())); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if _, err := s.SaveReport(sampleReport("b", time.Now().UTC())); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	// The empty prefix matches every run.
	if _, err := s.GetReport(""); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("expected ambiguity error, got %v", err)
	}
}

func TestHistoryGetReportMissing(t *testing.T) {
	s := openTestHistory(t)
	if _, err := s.GetReport("no-such-run"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestHistoryListRunsNewestFirst(t *testing.T) {
	s := openTestHistory(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, tag := range []string{"old", "mid", "new"} {
		r := sampleReport(tag, base.Add(time.Duration(i-2)*time.Hour))
		if _, err := s.SaveReport(r); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Tag != "new" || runs[2].Tag != "old" {
		t.Errorf("unexpected order: %s, %s, %s", runs[0].Tag, runs[1].Tag, runs[2].Tag)
	}
	if runs[0].TaskCount != 2 || runs[0].HighCount != 1 || runs[0].LowCount != 1 {
		t.Errorf("unexpected summary row %+v", runs[0])
	}
	if !runs[0].Research {
		t.Error("research flag lost")
	}

	limited, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d runs", len(limited))
	}
}
