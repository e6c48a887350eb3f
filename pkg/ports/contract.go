package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// RunSessionStoreContract verifies that a SessionStore implementation honors
// the interface contract. Every adapter's test suite should call it.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	base := "contract-" + time.Now().Format("20060102150405.000")

	newState := func(id string) *domain.SessionState {
		wf := &domain.Workflow{Name: "contract-wf", Version: "v1", Start: "first"}
		return domain.NewSession(id, wf, time.Now().UTC().Truncate(time.Millisecond))
	}

	t.Run("save and load round-trip", func(t *testing.T) {
		id := base + "-roundtrip"
		state := newState(id)
		state.Context["answer"] = "blue"
		state.History = append(state.History, domain.StepResult{
			Step:    "first",
			Attempt: 1,
			Outcome: domain.OutcomeSuccess,
			At:      time.Now().UTC().Truncate(time.Millisecond),
			Latency: 12 * time.Millisecond,
		})

		require.NoError(t, store.Save(ctx, state))
		defer func() { _ = store.Delete(ctx, id) }()

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, state.ID, loaded.ID)
		assert.Equal(t, state.Current, loaded.Current)
		assert.Equal(t, state.Status, loaded.Status)
		assert.Equal(t, "blue", loaded.Context["answer"])
		require.Len(t, loaded.History, 1)
		assert.Equal(t, domain.OutcomeSuccess, loaded.History[0].Outcome)
		assert.Equal(t, 1, loaded.History[0].Attempt)
	})

	t.Run("load isolates caller from stored state", func(t *testing.T) {
		id := base + "-isolation"
		state := newState(id)
		state.Context["key"] = "original"
		require.NoError(t, store.Save(ctx, state))
		defer func() { _ = store.Delete(ctx, id) }()

		// Mutating what we saved must not leak into the store.
		state.Context["key"] = "mutated-after-save"
		state.History = append(state.History, domain.StepResult{Step: "rogue"})

		first, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "original", first.Context["key"])
		assert.Empty(t, first.History)

		// Mutating what we loaded must not leak either.
		first.Context["key"] = "mutated-after-load"

		second, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "original", second.Context["key"])
	})

	t.Run("idempotent save", func(t *testing.T) {
		id := base + "-idempotent"
		state := newState(id)
		state.History = append(state.History, domain.StepResult{
			Step: "first", Attempt: 1, Outcome: domain.OutcomeSuccess,
		})

		require.NoError(t, store.Save(ctx, state))
		require.NoError(t, store.Save(ctx, state))
		defer func() { _ = store.Delete(ctx, id) }()

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Len(t, loaded.History, 1, "double save must not duplicate history")
	})

	t.Run("load unknown session", func(t *testing.T) {
		_, err := store.Load(ctx, base+"-missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		id := base + "-delete"
		require.NoError(t, store.Save(ctx, newState(id)))
		require.NoError(t, store.Delete(ctx, id))

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		assert.NoError(t, store.Delete(ctx, id), "deleting an unknown id is not an error")
	})

	t.Run("list", func(t *testing.T) {
		id1, id2 := base+"-list-1", base+"-list-2"
		require.NoError(t, store.Save(ctx, newState(id1)))
		require.NoError(t, store.Save(ctx, newState(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
