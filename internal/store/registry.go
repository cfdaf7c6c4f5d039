package store

import (
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry tracks the source paths currently being organized in this
// process. Entries older than the stale timeout are dropped so a crashed
// worker cannot block a path forever.
type Registry struct {
	entries *cache.Cache
}

// NewRegistry returns an empty registry. A staleAfter of zero keeps entries
// until End is called.
func NewRegistry(staleAfter time.Duration) *Registry {
	expiry := cache.NoExpiration
	cleanup := time.Duration(0)
	if staleAfter > 0 {
		expiry = staleAfter
		cleanup = staleAfter
	}
	return &Registry{entries: cache.New(expiry, cleanup)}
}

// TryBegin claims path. It returns false when the path is already claimed.
func (r *Registry) TryBegin(path string) bool {
	return r.entries.Add(filepath.Clean(path), time.Now(), cache.DefaultExpiration) == nil
}

// End releases path.
func (r *Registry) End(path string) {
	r.entries.Delete(filepath.Clean(path))
}
