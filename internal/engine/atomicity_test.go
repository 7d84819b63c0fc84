package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/gantry/internal/store"
	"github.com/ShayCichocki/gantry/pkg/models"
)

// A rejected operation must leave the backing file byte-identical, not
// merely logically equivalent.
func TestAbortedOperationLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	fs, err := store.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer fs.Close()

	seed := seedCollection(
		models.Task{ID: 1, Title: "A"},
		models.Task{ID: 2, Title: "B", Dependencies: []int{1}},
	)
	if err := fs.Save(context.Background(), seed); err != nil {
		t.Fatalf("Save: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	e := New(fs, nil)
	res := e.AddDependency(context.Background(), 1, 2)
	assertFailed(t, res, CodeValidation)

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("aborted operation rewrote the task file")
	}
}

func TestCommittedOperationPersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	fs, err := store.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer fs.Close()

	if err := fs.Save(context.Background(), seedCollection(models.Task{ID: 1, Title: "A"})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	e := New(fs, nil)
	res := e.SetStatus(context.Background(), "1", "done")
	assertCommitted(t, res)

	reopened, err := store.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer reopened.Close()
	c, err := reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Find(1).Status != models.StatusDone {
		t.Errorf("status not persisted, got %s", c.Find(1).Status)
	}
}
