// Package store persists task collections to disk. The file store keeps
// one collection per project file, guarded by a cross-process lock, and
// hands read-only callers a cached snapshot that never blocks writers.
package store

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// TaskStore is the persistence contract for a task collection.
type TaskStore interface {
	// Load reads the collection from disk.
	Load(ctx context.Context) (*models.Collection, error)

	// Save writes the collection to disk, replacing the previous state.
	Save(ctx context.Context, c *models.Collection) error

	// Mutate runs fn on the current collection under the exclusive
	// store lock and persists the result. If fn returns an error the
	// store is left untouched.
	Mutate(ctx context.Context, fn func(*models.Collection) error) error

	// Snapshot returns a copy of the collection for read-only use.
	// It does not take the exclusive lock.
	Snapshot(ctx context.Context) (*models.Collection, error)

	// Backup copies the raw store file to dst.
	Backup(dst string) error

	// Restore replaces the store contents from a backup file.
	Restore(src string) error

	// Path returns the location of the backing file.
	Path() string

	// Close releases locks and watchers.
	Close() error
}

// NotFoundError indicates the store file does not exist yet.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task store %s does not exist (run init first)", e.Path)
}

// CorruptError indicates the store file exists but cannot be trusted:
// the checksum does not match or the payload fails to decode.
type CorruptError struct {
	Path   string
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("task store %s is corrupt: %s", e.Path, e.Reason)
}
