package middleware

import (
	"fmt"
	"sort"
	"sync"
)

// Table maps the middleware names usable in controller manifests to
// middleware constructors already bound to their dependencies. The host
// application fills the table at startup; the router resolves names at
// mount time.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Middleware
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]Middleware),
	}
}

// Register adds a named middleware. Names are unique.
func (t *Table) Register(name string, m Middleware) error {
	if name == "" {
		return fmt.Errorf("middleware name must not be empty")
	}
	if m == nil {
		return fmt.Errorf("middleware %q: must not be nil", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[name]; exists {
		return fmt.Errorf("middleware %q already registered", name)
	}
	t.entries[name] = m
	return nil
}

// Resolve looks up a middleware by name.
func (t *Table) Resolve(name string) (Middleware, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.entries[name]
	return m, ok
}

// Chain builds a chain from the given names, in order. Unknown names
// are reported back so the caller can decide whether to log or fail.
func (t *Table) Chain(names []string) (*Chain, []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chain := NewChain()
	var unknown []string
	for _, name := range names {
		m, ok := t.entries[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		chain.Use(m)
	}
	return chain, unknown
}

// Names returns the registered middleware names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
