// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

// Opener returns an empty store; it is called once per subtest
type Opener func(t *testing.T) store.Store

// Run exercises open against the store contract
func Run(t *testing.T, open Opener) {
	t.Run("CreateTable", func(t *testing.T) { testCreateTable(t, open(t)) })
	t.Run("MissingTable", func(t *testing.T) { testMissingTable(t, open(t)) })
	t.Run("HandVersion", func(t *testing.T) { testHandVersion(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("Actions", func(t *testing.T) { testActions(t, open(t)) })
	t.Run("SeatsAndDeck", func(t *testing.T) { testSeatsAndDeck(t, open(t)) })
	t.Run("Credit", func(t *testing.T) { testCredit(t, open(t)) })
	t.Run("ConcurrentWriters", func(t *testing.T) { testConcurrentWriters(t, open(t)) })
}

// NewTable returns a table record with usable defaults
func NewTable(id string) store.Table {
	return store.Table{
		ID:         id,
		Variant:    game.Holdem,
		SmallBlind: 25,
		BigBlind:   50,
		MaxSeats:   6,
		Operator:   "op",
		DealerSeat: game.NoSeat,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func testCreateTable(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, NewTable("b")))
	require.NoError(t, s.CreateTable(ctx, NewTable("a")))

	err := s.CreateTable(ctx, NewTable("a"))
	assert.ErrorIs(t, err, store.ErrExists)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "a", tables[0].ID)
	assert.Equal(t, game.NoSeat, tables[0].DealerSeat)
	assert.Equal(t, 50, tables[0].BigBlind)
}

func testMissingTable(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.RunTx(ctx, "nope", func(context.Context, store.Tx) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Hand(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testHandVersion(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, NewTable("t")))

	_, err := s.Hand(ctx, "t")
	require.ErrorIs(t, err, store.ErrNotFound)

	hs := &game.HandState{TableID: "t", HandNo: 1, Version: 1, Street: game.Flop, ToActSeat: 2,
		Commits: map[int]int{2: 50}, Board: deck.MustParseCards("AsKd2c")}
	require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Hand(ctx)
		require.ErrorIs(t, err, store.ErrNotFound)
		return tx.SaveHand(ctx, hs)
	}))

	got, err := s.Hand(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, game.Flop, got.Street)
	assert.Equal(t, map[int]int{2: 50}, got.Commits)
	assert.Equal(t, hs.Board, got.Board)

	stale := got.Clone()
	stale.Version = 3
	err = s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		return tx.SaveHand(ctx, stale)
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	next := got.Clone()
	next.Version = 2
	require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		return tx.SaveHand(ctx, next)
	}))
	got, err = s.Hand(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, NewTable("t")))

	boom := errors.New("boom")
	err := s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.SaveSeats(ctx, game.Seats{0: {Occupant: "alice", Stack: 100}}))
		require.NoError(t, tx.Credit(ctx, "alice", 10))
		return boom
	})
	require.ErrorIs(t, err, boom)

	seats, err := s.Seats(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, seats)
	bal, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func testActions(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, NewTable("t")))

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, s.Enqueue(ctx, store.Action{
			ID: id, TableID: "t", HandNo: 1, Seat: i, Actor: fmt.Sprint("p", i),
			Type: game.ActionRaise, Amount: 100 * (i + 1), CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}
	err := s.Enqueue(ctx, store.Action{ID: "a1", TableID: "t", CreatedAt: base})
	assert.ErrorIs(t, err, store.ErrExists)

	pending, err := s.Pending(ctx, "t", 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a1", pending[0].ID)
	assert.Equal(t, "a2", pending[1].ID)
	assert.Equal(t, store.StatusPending, pending[0].Status)
	assert.Equal(t, game.Raise{Amount: 100}, pending[0].Move())

	require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		a, err := tx.Action(ctx, "a1")
		if err != nil {
			return err
		}
		a.Status = store.StatusInvalid
		a.Reason = game.ReasonNotYourTurn
		a.ResolvedAt = base.Add(time.Second)
		return tx.SaveAction(ctx, a)
	}))

	got, err := s.Action(ctx, "t", "a1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusInvalid, got.Status)
	assert.Equal(t, game.ReasonNotYourTurn, got.Reason)
	assert.True(t, got.Resolved())

	pending, err = s.Pending(ctx, "t", 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a2", pending[0].ID)

	_, err = s.Action(ctx, "t", "zz")
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Action(ctx, "zz")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSeatsAndDeck(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, NewTable("t")))

	d := deck.FromCards(deck.MustParseCards("AsKsQsJsTs9s"))
	require.NoError(t, d.Burn())

	require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Deck(ctx)
		require.ErrorIs(t, err, store.ErrNotFound)

		if err := tx.SaveDeck(ctx, d); err != nil {
			return err
		}
		tbl, err := tx.Table(ctx)
		if err != nil {
			return err
		}
		tbl.DealerSeat, tbl.HandNo = 3, 7
		if err := tx.SaveTable(ctx, tbl); err != nil {
			return err
		}
		return tx.SaveSeats(ctx, game.Seats{
			0: {Occupant: "alice", Stack: 1000},
			3: {Occupant: "bob", Stack: 500, Leaving: true},
		})
	}))

	seats, err := s.Seats(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, game.Seats{
		0: {Index: 0, Occupant: "alice", Stack: 1000},
		3: {Index: 3, Occupant: "bob", Stack: 500, Leaving: true},
	}, seats)

	require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		got, err := tx.Deck(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Remaining())
		assert.Equal(t, deck.MustParseCards("As"), got.Burned())

		tbl, err := tx.Table(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, tbl.DealerSeat)
		assert.Equal(t, 7, tbl.HandNo)

		// Partial writes leave other seats alone
		return tx.SaveSeats(ctx, game.Seats{3: {}})
	}))

	seats, err = s.Seats(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "alice", seats[0].Occupant)
	assert.False(t, seats[3].Occupied())
}

func testCredit(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, NewTable("t")))

	for range 2 {
		require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
			return tx.Credit(ctx, "alice", 250)
		}))
	}
	bal, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 500, bal)
}

// testConcurrentWriters checks that read-modify-write cycles racing on one
// table never lose an update
func testConcurrentWriters(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, NewTable("t")))
	require.NoError(t, s.RunTx(ctx, "t", func(ctx context.Context, tx store.Tx) error {
		return tx.SaveSeats(ctx, game.Seats{0: {Occupant: "alice", Stack: 0}})
	}))

	const writers = 6
	g, gctx := errgroup.WithContext(ctx)
	for range writers {
		g.Go(func() error {
			return s.RunTx(gctx, "t", func(ctx context.Context, tx store.Tx) error {
				seats, err := tx.Seats(ctx)
				if err != nil {
					return err
				}
				seat := seats[0]
				seat.Stack++
				return tx.SaveSeats(ctx, game.Seats{0: seat})
			})
		})
	}
	require.NoError(t, g.Wait())

	seats, err := s.Seats(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, writers, seats[0].Stack)
}
