// Package cleanup tracks temporary paths that should be removed when the
// process exits. Removal is best effort: failures are logged and collected,
// never fatal.
package cleanup

import (
	"errors"
	"os"
	"sync"

	"offinstr/internal/logging"
)

// Tracker registers a path for removal at exit.
type Tracker interface {
	Track(path string)
}

// Registry is a Tracker that removes its paths when Run is called.
type Registry struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// Track registers path. Tracking the same path twice is a no-op.
func (r *Registry) Track(path string) {
	if path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[path]; ok {
		return
	}
	r.seen[path] = struct{}{}
	r.paths = append(r.paths, path)
}

// Len returns the number of tracked paths.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// Run removes every tracked path, newest first, and forgets them.
func (r *Registry) Run() error {
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.seen = make(map[string]struct{})
	r.mu.Unlock()

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if err := os.RemoveAll(paths[i]); err != nil {
			logging.BootWarn("cleanup: could not remove %s: %v", paths[i], err)
			errs = append(errs, err)
			continue
		}
		logging.BootDebug("cleanup: removed %s", paths[i])
	}
	return errors.Join(errs...)
}

// Nop discards registrations.
type Nop struct{}

// Track implements Tracker.
func (Nop) Track(string) {}

// Or returns t, or Nop when t is nil.
func Or(t Tracker) Tracker {
	if t == nil {
		return Nop{}
	}
	return t
}
