// Package handler holds the catalog of named HTTP handlers that module
// files may reference. Handlers are registered explicitly by the host
// application at startup; module manifests bind to them by name.
package handler

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Catalog maps handler names to handler functions.
type Catalog struct {
	mu    sync.RWMutex
	funcs map[string]http.HandlerFunc
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		funcs: make(map[string]http.HandlerFunc),
	}
}

// Register adds a named handler. Names are unique; re-registering an
// existing name is an error so that two modules cannot silently fight
// over the same reference.
func (c *Catalog) Register(name string, fn http.HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("handler name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("handler %q: function must not be nil", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.funcs[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	c.funcs[name] = fn
	return nil
}

// MustRegister is Register that panics on error. Intended for static
// registration at program startup.
func (c *Catalog) MustRegister(name string, fn http.HandlerFunc) {
	if err := c.Register(name, fn); err != nil {
		panic(err)
	}
}

// Resolve looks up a handler by name.
func (c *Catalog) Resolve(name string) (http.HandlerFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[name]
	return fn, ok
}

// Names returns all registered handler names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.funcs)
}
