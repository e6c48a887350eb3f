package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rluijk/guided-llm-cli/internal/logging"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/ports"
)

// lockTTL bounds how long a crashed process can hold the distributed lock.
const lockTTL = 30 * time.Second

// lockEntry pairs a per-session mutex with a reference count so the map can
// be garbage collected once every holder is done.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager mediates all store access for the engine and CLI, serializing
// writers per session id.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking for multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[id]
	if !ok {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock runs fn while holding the local (and, when configured,
// distributed) lock for the session id.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, lockTTL)
		if err != nil {
			return fmt.Errorf("acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock; it will expire via TTL",
					"session", id, "err", err)
			}
		}()
	}

	return fn(ctx)
}

// Create persists a brand-new session, reserving its id. An id that already
// exists is an error: starting over an existing session would silently wipe
// its history.
func (m *Manager) Create(ctx context.Context, state *domain.SessionState) error {
	return m.WithLock(ctx, state.ID, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, state.ID)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, state.ID)
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("check session existence: %w", err)
		}
		return m.store.Save(ctx, state)
	})
}

// Get loads a session under lock.
func (m *Manager) Get(ctx context.Context, id string) (*domain.SessionState, error) {
	var state *domain.SessionState
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, id)
		return err
	})
	return state, err
}

// Save persists a session snapshot under lock.
func (m *Manager) Save(ctx context.Context, state *domain.SessionState) error {
	return m.WithLock(ctx, state.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, state)
	})
}

// Delete removes a session under lock.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List returns all stored session ids.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store exposes the underlying store for read-only surfaces (status
// commands, HTTP handlers).
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
