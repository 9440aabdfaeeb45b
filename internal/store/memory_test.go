package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
	"github.com/Mappledude/jampoker/internal/store/storetest"
)

func TestMemoryContract(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(*testing.T) store.Store { return store.NewMemory() })
}

func TestMemoryReadsAreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.CreateTable(ctx, storetest.NewTable("t")))
	require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		return tx.SaveHand(ctx, &game.HandState{TableID: "t", Version: 1, Commits: map[int]int{0: 5}})
	}))

	hs, err := s.Hand(ctx, "t")
	require.NoError(t, err)
	hs.Commits[0] = 500

	again, err := s.Hand(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Commits[0])
}

func TestMemoryStaleCommitConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemory().WithRetry(store.RetryPolicy{Attempts: 1})
	require.NoError(t, s.CreateTable(ctx, storetest.NewTable("t")))

	// A write that lands between another transaction's read and commit
	// makes that commit fail.
	err := s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, inner store.Tx) error {
			return inner.Credit(ctx, "bob", 1)
		}))
		return tx.Credit(ctx, "alice", 1)
	})
	require.ErrorIs(t, err, store.ErrConflict)

	bal, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		err := store.RetryPolicy{Attempts: 5}.Run(context.Background(), func() error {
			calls++
			if calls < 3 {
				return store.ErrConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := store.RetryPolicy{Attempts: 2}.Run(context.Background(), func() error {
			calls++
			return store.ErrConflict
		})
		require.ErrorIs(t, err, store.ErrConflict)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		err := store.RetryPolicy{Attempts: 5}.Run(context.Background(), func() error {
			calls++
			return store.ErrNotFound
		})
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := store.RetryPolicy{Attempts: 5, Backoff: time.Hour}.Run(ctx, func() error {
			return store.ErrConflict
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, store.ErrConflict)
	})
}
