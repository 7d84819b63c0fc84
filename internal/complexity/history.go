package complexity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// HistoryStore persists analysis reports so runs can be compared over
// time.
type HistoryStore struct {
	db *sql.DB
}

// ProjectHistoryPath returns the report history database path for a
// project root.
func ProjectHistoryPath(root string) string {
	return filepath.Join(root, ".gantry", "history.db")
}

// OpenHistory opens (creating if needed) the report history database.
func OpenHistory(dbPath string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS complexity_runs (
			id TEXT PRIMARY KEY,
			tag TEXT,
			threshold INT,
			research INT,
			task_count INT,
			high_count INT,
			medium_count INT,
			low_count INT,
			report TEXT,
			created_at DATETIME
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

// RunSummary is one saved run without its full report payload.
type RunSummary struct {
	ID          string
	Tag         string
	Threshold   int
	Research    bool
	TaskCount   int
	HighCount   int
	MediumCount int
	LowCount    int
	CreatedAt   time.Time
}

// SaveReport stores a report and returns its run id.
func (s *HistoryStore) SaveReport(r *models.ComplexityReport) (string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	id := uuid.New().String()
	createdAt := r.GeneratedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO complexity_runs (id, tag, threshold, research, task_count, high_count, medium_count, low_count, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, r.Tag, r.Threshold, boolToInt(r.Research), len(r.Entries),
		r.Summary.HighCount, r.Summary.MediumCount, r.Summary.LowCount, string(payload), createdAt)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *HistoryStore) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, tag, threshold, research, task_count, high_count, medium_count, low_count, created_at
		FROM complexity_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var tag sql.NullString
		var research int
		if err := rows.Scan(&run.ID, &tag, &run.Threshold, &research, &run.TaskCount,
			&run.HighCount, &run.MediumCount, &run.LowCount, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if tag.Valid {
			run.Tag = tag.String
		}
		run.Research = research != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetReport loads a saved report by run id. A unique id prefix is
// accepted.
func (s *HistoryStore) GetReport(id string) (*models.ComplexityReport, error) {
	rows, err := s.db.Query(`
		SELECT id, report FROM complexity_runs WHERE id LIKE ? || '%' LIMIT 2
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var payloads []string
	for rows.Next() {
		var fullID, payload string
		if err := rows.Scan(&fullID, &payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(payloads) {
	case 0:
		return nil, fmt.Errorf("run not found: %s", id)
	case 1:
		var report models.ComplexityReport
		if err := json.Unmarshal([]byte(payloads[0]), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		return &report, nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous", id)
	}
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
