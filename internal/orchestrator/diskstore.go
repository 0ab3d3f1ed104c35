package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/telemetry"
)

// DiskCheckpointStore persists checkpoints as one JSON file per id under
// dir, with an in-memory index kept honest by a fsnotify watch on dir: a
// file removed out from under the store (by an operator, a retention
// sweep, anything outside this process) is evicted from the index instead
// of silently resurrecting stale state on the next Get.
type DiskCheckpointStore struct {
	dir string

	mu    sync.RWMutex
	index map[string]bool

	watcher *fsnotify.Watcher
	logger  telemetry.Logger
}

// NewDiskCheckpointStore constructs a DiskCheckpointStore rooted at dir,
// creating it if absent, and starts watching it for external deletes.
func NewDiskCheckpointStore(dir string, logger telemetry.Logger) (*DiskCheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "checkpoint disk store: mkdir failed", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "checkpoint disk store: fsnotify init failed", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "checkpoint disk store: fsnotify watch failed", err)
	}

	s := &DiskCheckpointStore{dir: dir, index: map[string]bool{}, watcher: watcher, logger: logger}
	entries, err := os.ReadDir(dir)
	if err != nil {
		_ = watcher.Close()
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "checkpoint disk store: readdir failed", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			s.index[idFromFilename(e.Name())] = true
		}
	}
	go s.watchLoop()
	return s, nil
}

func (s *DiskCheckpointStore) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				id := idFromFilename(filepath.Base(event.Name))
				s.mu.Lock()
				delete(s.index, id)
				s.mu.Unlock()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.Warn(context.Background(), "checkpoint disk store watch error", "error", err.Error())
			}
		}
	}
}

// Close stops the background fsnotify watch.
func (s *DiskCheckpointStore) Close() error {
	return s.watcher.Close()
}

func idFromFilename(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func (s *DiskCheckpointStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Put writes cp to disk and records it in the index.
func (s *DiskCheckpointStore) Put(cp Checkpoint) error {
	if cp.ID == "" {
		return ccoserr.New(ccoserr.KindParse, "checkpoint disk store: cannot archive a checkpoint with no id")
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return ccoserr.NewWithCause(ccoserr.KindInternal, "checkpoint disk store: marshal failed", err)
	}
	if err := os.WriteFile(s.path(cp.ID), data, 0o644); err != nil {
		return ccoserr.NewWithCause(ccoserr.KindInternal, "checkpoint disk store: write failed", err)
	}
	s.mu.Lock()
	s.index[cp.ID] = true
	s.mu.Unlock()
	return nil
}

// Get reads the checkpoint for id from disk, if the index (kept honest by
// the fsnotify watch) still believes it exists.
func (s *DiskCheckpointStore) Get(id string) (Checkpoint, bool) {
	s.mu.RLock()
	known := s.index[id]
	s.mu.RUnlock()
	if !known {
		return Checkpoint{}, false
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return Checkpoint{}, false
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false
	}
	return cp, true
}
