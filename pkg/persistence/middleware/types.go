// Package middleware decorates a SessionStore with cross-cutting behavior
// (encryption at rest, redaction) without the store implementations knowing.
package middleware

import "github.com/rluijk/guided-llm-cli/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain wraps store with the given middlewares; the first middleware is the
// outermost layer, so writes pass through it first.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
