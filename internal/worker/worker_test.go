package worker_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/store"
	"github.com/Mappledude/jampoker/internal/worker"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.Memory
	clock *quartz.Mock
	gw    *gateway.Gateway
	dm    *dealer.Manager
	seq   int
}

func newFixture(t *testing.T, tables ...string) *fixture {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	f := &fixture{t: t, ctx: context.Background(), store: store.NewMemory(), clock: quartz.NewMock(t)}
	f.gw = gateway.New(f.store, logger, gateway.WithClock(f.clock))
	f.dm = dealer.New(f.store, logger, dealer.WithClock(f.clock), dealer.WithSeed(1))

	for _, id := range tables {
		require.NoError(t, f.store.CreateTable(f.ctx, store.Table{
			ID: id, Variant: game.Holdem, SmallBlind: 25, BigBlind: 50, MaxSeats: 6, DealerSeat: game.NoSeat,
		}))
		for seat := range 2 {
			_, err := f.gw.Sit(f.ctx, id, seat, fmt.Sprintf("%s-p%d", id, seat), 1000)
			require.NoError(t, err)
		}
	}
	return f
}

func (f *fixture) worker(cfg worker.Config) *worker.Worker {
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	return worker.New(f.store, f.gw, f.dm, f.clock, logger, cfg)
}

func (f *fixture) enqueue(tableID string, seat int, move game.Move) string {
	f.t.Helper()
	f.seq++
	id := fmt.Sprintf("a%03d", f.seq)
	require.NoError(f.t, f.store.Enqueue(f.ctx, store.Action{
		ID: id, TableID: tableID, HandNo: 1, Seat: seat, Type: move.Type(), Amount: game.Amount(move),
		CreatedAt: f.clock.Now().Add(time.Duration(f.seq) * time.Millisecond),
	}))
	return id
}

func TestTickDrainsOldestFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "t1")
	_, err := f.dm.StartHand(f.ctx, "t1")
	require.NoError(t, err)

	// Heads-up: seat 0 is the button and acts first, then the big blind.
	f.enqueue("t1", 0, game.Call{})
	f.enqueue("t1", 1, game.Check{})
	late := f.enqueue("t1", 1, game.Check{})

	stats, err := f.worker(worker.Config{AutoDeal: false}).Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Applied)
	assert.Zero(t, stats.Rejected)

	hs, err := f.store.Hand(f.ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, game.Flop, hs.Street)

	a, err := f.store.Action(f.ctx, "t1", late)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApplied, a.Status, "the big blind checks first on the flop")

	pending, err := f.store.Pending(f.ctx, "t1", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTickRecordsRejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "t1")
	_, err := f.dm.StartHand(f.ctx, "t1")
	require.NoError(t, err)

	id := f.enqueue("t1", 1, game.Check{})
	stats, err := f.worker(worker.Config{}).Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)

	a, err := f.store.Action(f.ctx, "t1", id)
	require.NoError(t, err)
	assert.Equal(t, game.ReasonNotYourTurn, a.Reason)
}

func TestTickBatchSize(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "t1")
	_, err := f.dm.StartHand(f.ctx, "t1")
	require.NoError(t, err)

	for range 5 {
		f.enqueue("t1", 1, game.Check{})
	}
	w := f.worker(worker.Config{BatchSize: 2})

	stats, err := w.Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rejected)

	pending, err := f.store.Pending(f.ctx, "t1", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestTickAutoDealsEveryTable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "t1", "t2", "t3")

	stats, err := f.worker(worker.Config{AutoDeal: true, Concurrency: 2}).Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Started)

	for _, id := range []string{"t1", "t2", "t3"} {
		hs, err := f.store.Hand(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, hs.HandNo)
	}

	stats, err = f.worker(worker.Config{AutoDeal: true}).Tick(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Started, "hands in progress are left alone")
}

func TestRunStopsWithContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "t1")
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	w := worker.New(f.store, f.gw, f.dm, quartz.NewReal(), logger, worker.Config{Interval: 5 * time.Millisecond, AutoDeal: true})

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := f.store.Hand(f.ctx, "t1")
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
