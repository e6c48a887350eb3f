package ports

import (
	"context"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// SessionStore persists session snapshots, enabling durable, crash-resumable
// sessions.
//
// Implementations must satisfy three invariants, verified by
// RunSessionStoreContract:
//
//   - Save is atomic: a reader never observes a partially written snapshot,
//     only the previous or the new one.
//   - Saving an identical snapshot twice is indistinguishable from saving it
//     once.
//   - Stored state never aliases caller memory: mutating a snapshot after
//     Save, or the result of Load, must not affect what the store holds.
type SessionStore interface {
	// Save persists the full snapshot for state.ID.
	Save(ctx context.Context, state *domain.SessionState) error

	// Load retrieves the last committed snapshot.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, id string) (*domain.SessionState, error)

	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
