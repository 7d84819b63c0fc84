package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the project-local telemetry database.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

var _ Recorder = (*DB)(nil)

// ProjectDBPath returns the path to the project-local telemetry database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".gantry", "telemetry.db")
}

// Open opens the telemetry database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenProject opens the telemetry database for a project root and
// applies pending migrations.
func OpenProject(projectRoot string) (*DB, error) {
	db, err := Open(ProjectDBPath(projectRoot))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Calls},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Calls = `
CREATE TABLE IF NOT EXISTS ai_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	op TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	role TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 1,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	error TEXT,
	started_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ai_calls_op ON ai_calls(op);
CREATE INDEX IF NOT EXISTS idx_ai_calls_started_at ON ai_calls(started_at);
`

// Record persists a call record. Telemetry failures must never break
// the operation that produced them, so errors are swallowed.
func (db *DB) Record(rec CallRecord) {
	_ = db.Insert(rec)
}

// Insert persists a call record and reports any failure.
func (db *DB) Insert(rec CallRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	_, err := db.conn.Exec(`
		INSERT INTO ai_calls (op, provider, model, role, attempts, input_tokens, output_tokens, latency_ms, outcome, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Op, rec.Provider, rec.Model, rec.Role, rec.Attempts,
		rec.InputTokens, rec.OutputTokens, rec.Latency.Milliseconds(),
		rec.Outcome, rec.Error, formatTime(started))
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

// ModelSummary aggregates calls for one provider and model pair.
type ModelSummary struct {
	Provider     string
	Model        string
	Calls        int
	Errors       int
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Summary returns per-model aggregates for calls since the cutoff.
// A zero cutoff covers everything.
func (db *DB) Summary(since time.Time) ([]ModelSummary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT provider, model,
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome != 'ok' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0)
		FROM ai_calls
		WHERE started_at >= ?
		GROUP BY provider, model
		ORDER BY provider, model
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var s ModelSummary
		if err := rows.Scan(&s.Provider, &s.Model, &s.Calls, &s.Errors, &s.InputTokens, &s.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		s.Cost = CostOf(s.Model, s.InputTokens, s.OutputTokens)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Recent returns the most recent call records, newest first.
func (db *DB) Recent(limit int) ([]CallRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT op, provider, model, role, attempts, input_tokens, output_tokens, latency_ms, outcome, COALESCE(error, ''), started_at
		FROM ai_calls
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent calls: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var rec CallRecord
		var latencyMS int64
		var started string
		if err := rows.Scan(&rec.Op, &rec.Provider, &rec.Model, &rec.Role, &rec.Attempts,
			&rec.InputTokens, &rec.OutputTokens, &latencyMS, &rec.Outcome, &rec.Error, &started); err != nil {
			return nil, fmt.Errorf("scan call row: %w", err)
		}
		rec.Latency = time.Duration(latencyMS) * time.Millisecond
		if ts, err := parseTime(started); err == nil {
			rec.StartedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Purge deletes call records older than the given duration. Returns the
// number of records deleted.
func (db *DB) Purge(olderThan time.Duration) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := db.conn.Exec(`DELETE FROM ai_calls WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge call records: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
