package app

import (
	"sync"
)

// Env holds the settings contributed by service modules, namespaced by
// service name ("<service>.<key>"). Handlers read it through the app.
type Env struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{
		values: make(map[string]string),
	}
}

// Apply merges a service's settings. Later applications of the same
// service overwrite earlier ones key by key.
func (e *Env) Apply(service string, settings map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, value := range settings {
		e.values[service+"."+key] = value
	}
}

// Get returns the value for a namespaced key.
func (e *Env) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	value, ok := e.values[key]
	return value, ok
}

// Snapshot returns a copy of all values.
func (e *Env) Snapshot() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]string, len(e.values))
	for key, value := range e.values {
		out[key] = value
	}
	return out
}
