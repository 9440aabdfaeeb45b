package game

import (
	rand "math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/randutil"
)

func randomMove(rng *rand.Rand, hs *HandState, seats Seats) Move {
	stack := seats.Stack(hs.ToActSeat)
	switch rng.IntN(6) {
	case 0:
		return Check{}
	case 1, 2:
		return Call{}
	case 3:
		return Bet{Amount: rng.IntN(stack+1) + rng.IntN(2)}
	case 4:
		return Raise{Amount: rng.IntN(stack+1) + rng.IntN(2)}
	default:
		if rng.IntN(3) == 0 {
			return Fold{}
		}
		return Call{}
	}
}

func checkInvariants(t *testing.T, hs *HandState, seats Seats, startTotal int) {
	t.Helper()

	// Chips removed from stacks are exactly the pot plus street commitments.
	assert.Equal(t, startTotal, seats.Total()+hs.ChipsInPlay(), "chip conservation")
	assert.Equal(t, maxCommit(hs.Commits), hs.BetToMatch, "bet to match is the top commitment")

	for idx, seat := range seats {
		assert.GreaterOrEqual(t, seat.Stack, 0, "seat %d overdrawn", idx)
	}

	if hs.ToActSeat != NoSeat {
		seat, ok := seats[hs.ToActSeat]
		require.True(t, ok)
		assert.True(t, seat.Occupied())
		assert.False(t, hs.Folded[hs.ToActSeat])
		assert.Positive(t, seat.Stack)
		assert.NotEqual(t, Showdown, hs.Street)
	} else {
		assert.Equal(t, Showdown, hs.Street)
	}
}

func TestRandomPlayPreservesInvariants(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 200; seed++ {
		rng := randutil.New(seed)
		n := 2 + rng.IntN(5)
		var configs []seatConfig
		for i := 0; i < n; i++ {
			configs = append(configs, seatConfig{seat: i * 2, stack: 60 + rng.IntN(1500)})
		}
		dealer := configs[0].seat
		sb, bb := configs[1].seat, configs[min(2, n-1)].seat
		if n == 2 {
			sb, bb = configs[0].seat, configs[1].seat
		}

		hs, seats := buildHand(t, configs, dealer, sb, bb)
		startTotal := seats.Total() + hs.ChipsInPlay()
		d := deck.New(randutil.New(seed))
		for _, c := range configs {
			hole, err := d.Draw(2)
			require.NoError(t, err)
			hs.Holes[c.seat] = hole
		}

		for step := 0; step < 400 && hs.Street != Showdown; step++ {
			m := randomMove(rng, hs, seats)
			res, err := Apply(hs, seats, d, Action{HandNo: hs.HandNo, Seat: hs.ToActSeat, Move: m})
			require.NoError(t, err, "seed %d", seed)
			if res.Rejected() {
				continue
			}
			prevVersion := hs.Version
			hs, seats = res.State, res.Seats
			assert.Equal(t, prevVersion, hs.Version, "the machine never bumps versions")
			checkInvariants(t, hs, seats, startTotal)
		}
		require.Equal(t, Showdown, hs.Street, "seed %d did not finish", seed)

		settled, err := Settle(hs, seats, d)
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, startTotal, settled.Seats.Total(), "seed %d: settlement returns every chip", seed)
		assert.True(t, settled.State.Settled)
	}
}

func TestStreetRoundTrip(t *testing.T) {
	t.Parallel()

	hs, seats := threeHanded(t)
	d := freshDeck()
	hs, seats = play(t, hs, seats, d, act(0, Call{}), act(1, Call{}), act(2, Check{}))
	require.Equal(t, Flop, hs.Street)

	hs, seats = play(t, hs, seats, d, act(1, Bet{Amount: 100}), act(2, Call{}))
	before := sumCommits(hs.Commits)
	potBefore := hs.Pot

	hs, _ = play(t, hs, seats, d, act(0, Call{}))
	assert.Equal(t, Turn, hs.Street)
	assert.Empty(t, hs.Commits)
	assert.Equal(t, potBefore+before+100, hs.Pot)
	assert.Len(t, hs.Board, 4)
}

func TestCheckedDownHandReachesShowdown(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	d := freshDeck()
	hs, seats = play(t, hs, seats, d, act(1, Call{}), act(0, Check{}))
	for _, street := range []Street{Flop, Turn, River} {
		require.Equal(t, street, hs.Street)
		// Heads-up the big blind acts first after the flop.
		require.Equal(t, 0, hs.ToActSeat)
		hs, seats = play(t, hs, seats, d, act(0, Check{}), act(1, Check{}))
	}
	assert.Equal(t, Showdown, hs.Street)
	assert.Equal(t, NoSeat, hs.ToActSeat)
	assert.Len(t, hs.Board, 5)
	assert.Len(t, d.Burned(), 3)
	assert.Equal(t, 100, hs.Pot)
}

func TestDeckExhaustionIsAnError(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	d := deck.FromCards(deck.MustParseCards("2c3c"))
	hs, seats = play(t, hs, seats, d, act(1, Call{}))

	_, err := Apply(hs, seats, d, Action{HandNo: 1, Seat: 0, Move: Check{}})
	assert.ErrorIs(t, err, deck.ErrExhausted)
}

func TestNextActive(t *testing.T) {
	t.Parallel()

	seats := Seats{
		1: {Index: 1, Occupant: "a", Stack: 100},
		3: {Index: 3, Occupant: "b", Stack: 0},
		5: {Index: 5, Occupant: "c", Stack: 100},
		7: {Index: 7, Occupant: "d", Stack: 100},
	}
	players := []int{1, 3, 5, 7}

	tests := []struct {
		name   string
		from   int
		folded map[int]bool
		want   int
	}{
		{"skips all-in seat", 1, nil, 5},
		{"wraps around", 7, nil, 1},
		{"skips folded seat", 5, map[int]bool{7: true}, 1},
		{"from a seat not in the hand", 4, nil, 5},
		{"nobody else eligible returns start", 1, map[int]bool{5: true, 7: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextActive(players, seats, tt.from, tt.folded))
		})
	}
}
