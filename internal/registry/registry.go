// Package registry tracks which module files currently contribute an
// active, registered controller. It is the single source of truth
// consumed on unload.
package registry

import (
	"sort"
	"sync"

	"github.com/modkit-go/modkit/internal/module"
)

// Registry maps canonical absolute file paths to the controller record
// loaded from that path. A path is present if and only if its file is
// currently registered.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*module.ControllerRecord
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[string]*module.ControllerRecord),
	}
}

// Put inserts or overwrites the record for its source path and returns
// the record it replaced, if any.
func (r *Registry) Put(rec *module.ControllerRecord) *module.ControllerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.records[rec.Path]
	r.records[rec.Path] = rec
	return prev
}

// Remove deletes the entry for path and returns the removed record.
// Removing an absent path is a no-op and reports false.
func (r *Registry) Remove(path string) (*module.ControllerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[path]
	if !ok {
		return nil, false
	}
	delete(r.records, path)
	return rec, true
}

// Get returns the record for path.
func (r *Registry) Get(path string) (*module.ControllerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[path]
	return rec, ok
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Paths returns the registered paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.records))
	for path := range r.records {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Records returns the registered records ordered by path.
func (r *Registry) Records() []*module.ControllerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.records))
	for path := range r.records {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	records := make([]*module.ControllerRecord, 0, len(paths))
	for _, path := range paths {
		records = append(records, r.records[path])
	}
	return records
}
