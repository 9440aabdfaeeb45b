package gateway_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/randutil"
	"github.com/Mappledude/jampoker/internal/store"
)

const tableID = "t1"

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.Memory
	gw    *gateway.Gateway
	rec   *gateway.Recorder
	clock *quartz.Mock
	seq   int
}

// newFixture creates a six-seat table with blinds 25/50 and seats player
// "p<i>" at every seat in stacks
func newFixture(t *testing.T, stacks map[int]int) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store.NewMemory(),
		rec:   &gateway.Recorder{},
		clock: quartz.NewMock(t),
	}
	f.clock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	f.gw = gateway.New(f.store, testLogger(), gateway.WithPublisher(f.rec), gateway.WithClock(f.clock))

	require.NoError(t, f.store.CreateTable(f.ctx, store.Table{
		ID: tableID, Variant: game.Holdem, SmallBlind: 25, BigBlind: 50,
		MaxSeats: 6, Operator: "op", DealerSeat: game.NoSeat,
	}))
	for seat, stack := range stacks {
		_, err := f.gw.Sit(f.ctx, tableID, seat, player(seat), stack)
		require.NoError(t, err)
	}
	return f
}

func player(seat int) string {
	return fmt.Sprintf("p%d", seat)
}

// deal stores hand 1 with blinds posted and two hole cards per seat drawn
// from d
func (f *fixture) deal(dealer, sb, bb int, d *deck.Deck) *game.HandState {
	f.t.Helper()
	var hs *game.HandState
	require.NoError(f.t, f.store.RunTx(f.ctx, tableID, func(ctx context.Context, tx store.Tx) error {
		seats, err := tx.Seats(ctx)
		if err != nil {
			return err
		}
		players := seats.Eligible()
		hs = &game.HandState{
			TableID: tableID, HandNo: 1, Variant: game.Holdem,
			DealerSeat: dealer, SBSeat: sb, BBSeat: bb, SmallBlind: 25, BigBlind: 50,
			Players: players, MinRaise: 50, LastAggressorSeat: bb,
			Commits: map[int]int{}, HandCommits: map[int]int{},
			Folded: map[int]bool{}, Acted: map[int]bool{},
			Holes: map[int][]deck.Card{}, Version: 1,
		}
		hs.Post(seats, sb, 25)
		hs.Post(seats, bb, 50)
		hs.ToActSeat = game.NextActive(players, seats, bb, nil)
		for _, p := range players {
			cards, err := d.Draw(2)
			if err != nil {
				return err
			}
			hs.Holes[p] = cards
		}
		if err := tx.SaveHand(ctx, hs); err != nil {
			return err
		}
		if err := tx.SaveSeats(ctx, seats); err != nil {
			return err
		}
		return tx.SaveDeck(ctx, d)
	}))
	return hs
}

func shuffled() *deck.Deck {
	return deck.New(randutil.New(7))
}

// enqueue stores a pending action by the seat's own player
func (f *fixture) enqueue(seat int, move game.Move) string {
	f.t.Helper()
	return f.enqueueAs(1, seat, player(seat), move)
}

func (f *fixture) enqueueAs(handNo, seat int, actor string, move game.Move) string {
	f.t.Helper()
	f.seq++
	id := fmt.Sprintf("a%02d", f.seq)
	require.NoError(f.t, f.store.Enqueue(f.ctx, store.Action{
		ID: id, TableID: tableID, HandNo: handNo, Seat: seat, Actor: actor,
		Type: move.Type(), Amount: game.Amount(move), CreatedAt: f.clock.Now(),
	}))
	return id
}

// act enqueues and submits, failing the test unless the action applies
func (f *fixture) act(seat int, move game.Move) gateway.Resolution {
	f.t.Helper()
	res, err := f.gw.Submit(f.ctx, tableID, f.enqueue(seat, move))
	require.NoError(f.t, err)
	require.Equal(f.t, store.StatusApplied, res.Status, "seat %d %v: %s", seat, move, res.Reason)
	return res
}

func (f *fixture) hand() *game.HandState {
	f.t.Helper()
	hs, err := f.store.Hand(f.ctx, tableID)
	require.NoError(f.t, err)
	return hs
}

func (f *fixture) seats() game.Seats {
	f.t.Helper()
	seats, err := f.store.Seats(f.ctx, tableID)
	require.NoError(f.t, err)
	return seats
}

// chips returns every chip the fixture's players own: stacks, the hand's
// pot and commits, and bank balances
func (f *fixture) chips(players ...int) int {
	f.t.Helper()
	total := f.seats().Total()
	if hs, err := f.store.Hand(f.ctx, tableID); err == nil && !hs.Settled {
		total += hs.ChipsInPlay()
	}
	for _, p := range players {
		bal, err := f.store.Balance(f.ctx, player(p))
		require.NoError(f.t, err)
		total += bal
	}
	return total
}
