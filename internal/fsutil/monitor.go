package fsutil

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	csmap "github.com/mhmtszr/concurrent-swiss-map"
)

// Monitor tracks paths that are being written by this process and answers
// whether a path is safe to touch.
type Monitor struct {
	mu     sync.Mutex
	active *csmap.CsMap[string, int]

	// OnComplete runs after the last CompleteChange for a path.
	OnComplete func(path string, refresh bool)
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{active: csmap.Create[string, int]()}
}

// BeginChange marks path as being modified. Calls nest.
func (m *Monitor) BeginChange(path string) {
	key := filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := m.active.Load(key)
	m.active.Store(key, n+1)
}

// CompleteChange ends one BeginChange for path.
func (m *Monitor) CompleteChange(path string, refresh bool) {
	key := filepath.Clean(path)

	m.mu.Lock()
	n, ok := m.active.Load(key)
	done := false
	switch {
	case !ok:
	case n <= 1:
		m.active.Delete(key)
		done = true
	default:
		m.active.Store(key, n-1)
	}
	m.mu.Unlock()

	if done && m.OnComplete != nil {
		m.OnComplete(key, refresh)
	}
}

// Changing reports whether path has an open change.
func (m *Monitor) Changing(path string) bool {
	_, ok := m.active.Load(filepath.Clean(path))
	return ok
}

// IsLocked reports whether path is being changed by this process or holds an
// advisory lock taken by another one. Missing files are never locked.
func (m *Monitor) IsLocked(path string) bool {
	if m.Changing(path) {
		return true
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))
	defer lock.Close()

	locked, err := lock.TryRLock()
	if err != nil {
		return true
	}
	if !locked {
		return true
	}
	_ = lock.Unlock()
	return false
}
