package store

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher invalidates the snapshot cache when the store file is
// touched by another process. The watcher is best effort: when fsnotify
// is unavailable the store degrades to stat polling.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu sync.Mutex
	ok bool
}

// newFileWatcher watches the directory containing path, since renames
// over the file would orphan a watch on the file itself. onChange fires
// for every create, write, rename, or remove of the store file.
func newFileWatcher(path string, onChange func()) *fileWatcher {
	fw := &fileWatcher{done: make(chan struct{})}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - Snapshot falls back to polling
		return fw
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fw
	}

	fw.watcher = watcher
	fw.ok = true
	base := filepath.Base(path)

	go func() {
		const touched = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove
		for {
			select {
			case <-fw.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					fw.setInactive()
					return
				}
				if filepath.Base(event.Name) == base && event.Op&touched != 0 {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					fw.setInactive()
					return
				}
				// Ignore errors, keep watching
			}
		}
	}()

	return fw
}

// active reports whether change events are still being delivered.
func (fw *fileWatcher) active() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.ok
}

func (fw *fileWatcher) setInactive() {
	fw.mu.Lock()
	fw.ok = false
	fw.mu.Unlock()
}

// Close stops the watcher goroutine.
func (fw *fileWatcher) Close() {
	fw.setInactive()
	close(fw.done)
	if fw.watcher != nil {
		fw.watcher.Close()
	}
}
