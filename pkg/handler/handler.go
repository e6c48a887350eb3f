// Package handler manages the deterministic step implementations injected
// into an engine. Handlers run synchronously and contain the business logic
// the engine itself never owns.
package handler

import (
	"context"
	"fmt"
	"sync"
)

// Func is the signature for a deterministic step implementation. It receives
// the session context and returns the step's raw output, which the engine
// validates against the step's output contract. A returned error is treated
// as fatal: deterministic work is expected to either succeed or be a bug.
type Func func(ctx context.Context, sessionCtx map[string]any) (any, error)

// Registry manages the available handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Func
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Func),
	}
}

// Register adds a handler to the registry.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Registered reports whether a handler with the given name exists.
func (r *Registry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Execute looks up a handler by name and executes it.
// Returns an error if the handler is not found.
func (r *Registry) Execute(ctx context.Context, name string, sessionCtx map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("handler not found: %s", name)
	}

	return fn(ctx, sessionCtx)
}
