package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/ShayCichocki/gantry/pkg/models"
)

const (
	lockSuffix     = ".lock"
	checksumSuffix = ".sha256"
	backupSuffix   = ".bak"

	// lockRetryDelay is how often a blocked writer re-tries the
	// cross-process lock while waiting on its context.
	lockRetryDelay = 50 * time.Millisecond
)

// FileStore persists a collection to a single JSON or YAML file.
// Writers are serialized by an in-process mutex plus a flock sidecar
// so two gantry processes never interleave a load-modify-save cycle.
type FileStore struct {
	path  string
	codec codec
	flk   *flock.Flock

	// mu serializes Save and Mutate within this process.
	mu sync.Mutex

	// snapMu guards the cached read-only snapshot.
	snapMu    sync.RWMutex
	snap      *models.Collection
	snapStale bool
	snapMod   time.Time
	snapSize  int64

	watcher   *fileWatcher
	closeOnce sync.Once
}

var _ TaskStore = (*FileStore)(nil)

// NewFileStore opens a file store at path, creating parent directories
// as needed. The file itself is created by the first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &FileStore{
		path:      abs,
		codec:     codecForPath(abs),
		flk:       flock.New(abs + lockSuffix),
		snapStale: true,
	}
	// Watch for external edits so cached snapshots go stale. The store
	// works without the watcher; Snapshot falls back to stat polling.
	s.watcher = newFileWatcher(abs, s.invalidateSnapshot)
	return s, nil
}

// Path returns the absolute location of the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the collection. Reads never take the exclusive
// lock: saves replace the file atomically, so a read sees either the
// old or the new state, never a torn one.
func (s *FileStore) Load(ctx context.Context) (*models.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

// Save replaces the stored collection.
func (s *FileStore) Save(ctx context.Context, c *models.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockProcess(ctx); err != nil {
		return err
	}
	defer s.unlockProcess()

	return s.write(c)
}

// Mutate loads the collection, applies fn, and persists the result,
// all under the exclusive lock. A failing fn aborts without writing.
func (s *FileStore) Mutate(ctx context.Context, fn func(*models.Collection) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockProcess(ctx); err != nil {
		return err
	}
	defer s.unlockProcess()

	c, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.write(c)
}

// Snapshot returns a copy of the collection that the caller may mutate
// freely. The copy comes from a cache that is refreshed when the file
// changes on disk.
func (s *FileStore) Snapshot(ctx context.Context) (*models.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.snapMu.RLock()
	if s.snap != nil && !s.snapStale && !s.fileChanged() {
		c := s.snap.Clone()
		s.snapMu.RUnlock()
		return c, nil
	}
	s.snapMu.RUnlock()

	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snap != nil && !s.snapStale && !s.fileChanged() {
		return s.snap.Clone(), nil
	}

	c, err := s.read()
	if err != nil {
		return nil, err
	}
	info, statErr := os.Stat(s.path)
	if statErr == nil {
		s.snapMod = info.ModTime()
		s.snapSize = info.Size()
	}
	s.snap = c
	s.snapStale = false
	return c.Clone(), nil
}

// Backup copies the raw store file to dst.
func (s *FileStore) Backup(dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Path: s.path}
		}
		return fmt.Errorf("read store for backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write backup %s: %w", dst, err)
	}
	return nil
}

// Restore replaces the store contents from a backup file. The backup is
// decoded and validated first so a bad file never clobbers good state.
func (s *FileStore) Restore(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockProcess(context.Background()); err != nil {
		return err
	}
	defer s.unlockProcess()

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", src, err)
	}
	c := models.NewCollection()
	if err := s.decode(data, c); err != nil {
		return fmt.Errorf("backup %s is not a valid store file: %w", src, err)
	}
	return s.write(c)
}

// Close releases the flock and stops the watcher.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			s.watcher.Close()
		}
		err = s.flk.Unlock()
	})
	return err
}

// lockProcess acquires the cross-process flock, polling until the
// context is done.
func (s *FileStore) lockProcess(ctx context.Context) error {
	locked, err := s.flk.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock store %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("lock store %s: not acquired", s.path)
	}
	return nil
}

func (s *FileStore) unlockProcess() {
	_ = s.flk.Unlock()
}

// read loads the file, verifies its checksum, and decodes it.
func (s *FileStore) read() (*models.Collection, error) {
	data, err := s.readVerified()
	if err != nil {
		return nil, err
	}

	c := models.NewCollection()
	if err := s.decode(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// readVerified loads the payload and checks it against the sidecar.
// A mismatch is retried once: saves replace the file and the sidecar in
// two steps, so a reader racing a writer in another process can see
// them out of sync for an instant.
func (s *FileStore) readVerified() ([]byte, error) {
	data, err := s.readRaw()
	if err != nil {
		return nil, err
	}
	if err := s.verifyChecksum(data); err == nil {
		return data, nil
	}
	time.Sleep(lockRetryDelay)
	data, err = s.readRaw()
	if err != nil {
		return nil, err
	}
	if err := s.verifyChecksum(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *FileStore) readRaw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: s.path}
		}
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}
	return data, nil
}

func (s *FileStore) decode(data []byte, c *models.Collection) error {
	if err := s.codec.Unmarshal(data, c); err != nil {
		return &CorruptError{Path: s.path, Reason: fmt.Sprintf("invalid %s: %v", s.codec.Name(), err)}
	}
	if err := c.Normalize(time.Now().UTC()); err != nil {
		return &CorruptError{Path: s.path, Reason: err.Error()}
	}
	return nil
}

// verifyChecksum compares the payload against the sidecar when one
// exists. Files written before checksums were introduced load cleanly;
// the next save creates the sidecar.
func (s *FileStore) verifyChecksum(data []byte) error {
	sidecar := s.path + checksumSuffix
	expected, err := os.ReadFile(sidecar)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read checksum %s: %w", sidecar, err)
	}
	want := strings.TrimSpace(string(expected))
	if got := checksum(data); got != want {
		return &CorruptError{
			Path:   s.path,
			Reason: fmt.Sprintf("checksum mismatch (want %s, got %s)", want, got),
		}
	}
	return nil
}

// write marshals the collection and atomically replaces the store file.
// The previous file survives as <file>.bak and the checksum sidecar is
// rewritten to match the new payload.
func (s *FileStore) write(c *models.Collection) error {
	c.SortByID()
	data, err := s.codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	defer func() { _ = os.Remove(tmp) }()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp store %s: %w", tmp, err)
	}

	// Keep the outgoing state around for manual recovery.
	if prev, readErr := os.ReadFile(s.path); readErr == nil {
		_ = os.WriteFile(s.path+backupSuffix, prev, 0o644)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path+checksumSuffix, []byte(checksum(data)), 0o644); err != nil {
		return fmt.Errorf("write checksum sidecar: %w", err)
	}

	s.invalidateSnapshot()
	return nil
}

func (s *FileStore) invalidateSnapshot() {
	s.snapMu.Lock()
	s.snapStale = true
	s.snapMu.Unlock()
}

// fileChanged reports whether the file on disk differs from what the
// snapshot was taken from. Used as the polling fallback when the
// fsnotify watcher is unavailable. Callers hold snapMu.
func (s *FileStore) fileChanged() bool {
	if s.watcher != nil && s.watcher.active() {
		return false
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return true
	}
	return !info.ModTime().Equal(s.snapMod) || info.Size() != s.snapSize
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
