package game

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/deck"
)

const (
	testSB = 25
	testBB = 50
)

type seatConfig struct {
	seat  int
	stack int
}

// buildHand seats the given stacks, posts blinds and hands the action to the
// seat after the big blind, the same way the dealer opens a hand
func buildHand(t *testing.T, configs []seatConfig, dealer, sb, bb int) (*HandState, Seats) {
	t.Helper()

	seats := Seats{}
	var players []int
	for _, cfg := range configs {
		seats[cfg.seat] = Seat{Index: cfg.seat, Occupant: "p" + string(rune('a'+cfg.seat)), Stack: cfg.stack}
		players = append(players, cfg.seat)
	}
	sort.Ints(players)

	hs := &HandState{
		TableID:           "t1",
		HandNo:            1,
		Variant:           Holdem,
		Street:            Preflop,
		DealerSeat:        dealer,
		SBSeat:            sb,
		BBSeat:            bb,
		SmallBlind:        testSB,
		BigBlind:          testBB,
		Players:           players,
		MinRaise:          testBB,
		LastAggressorSeat: NoSeat,
		Holes:             map[int][]deck.Card{},
	}
	hs.ensureMaps()
	hs.Post(seats, sb, testSB)
	hs.Post(seats, bb, testBB)
	hs.LastAggressorSeat = bb
	hs.ToActSeat = NextActive(players, seats, bb, hs.Folded)

	return hs, seats
}

func headsUp(t *testing.T) (*HandState, Seats) {
	return buildHand(t, []seatConfig{{0, 1000}, {1, 1000}}, 1, 1, 0)
}

func threeHanded(t *testing.T) (*HandState, Seats) {
	return buildHand(t, []seatConfig{{0, 1000}, {1, 1000}, {2, 1000}}, 0, 1, 2)
}

func freshDeck() *deck.Deck {
	return deck.FromCards(deck.Standard())
}

// play applies a sequence of moves, failing the test on any rejection
func play(t *testing.T, hs *HandState, seats Seats, d Deck, moves ...Action) (*HandState, Seats) {
	t.Helper()
	for _, a := range moves {
		a.HandNo = hs.HandNo
		res, err := Apply(hs, seats, d, a)
		require.NoError(t, err)
		require.False(t, res.Rejected(), "seat %d %s rejected: %s", a.Seat, a.Move.Type(), res.Reason)
		hs, seats = res.State, res.Seats
	}
	return hs, seats
}

func act(seat int, m Move) Action {
	return Action{Seat: seat, Move: m}
}

func TestHeadsUpCallThenCheckOpensFlop(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	require.Equal(t, map[int]int{0: 50, 1: 25}, hs.Commits)
	require.Equal(t, 50, hs.BetToMatch)
	require.Equal(t, 1, hs.ToActSeat)

	d := freshDeck()
	hs, seats = play(t, hs, seats, d, act(1, Call{}))
	assert.Equal(t, map[int]int{0: 50, 1: 50}, hs.Commits)
	assert.Equal(t, 0, hs.ToActSeat)
	assert.Equal(t, Preflop, hs.Street)

	hs, _ = play(t, hs, seats, d, act(0, Check{}))
	assert.Equal(t, Flop, hs.Street)
	assert.Empty(t, hs.Commits)
	assert.Equal(t, 0, hs.ToActSeat)
	assert.Equal(t, 100, hs.Pot)
	assert.Len(t, hs.Board, 3)
	assert.Len(t, d.Burned(), 1)
}

func TestHeadsUpRaiseThenCallOpensFlop(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	d := freshDeck()

	hs, seats = play(t, hs, seats, d, act(1, Raise{Amount: 125}))
	assert.Equal(t, 150, hs.BetToMatch)
	assert.Equal(t, 1, hs.LastAggressorSeat)
	assert.Equal(t, 0, hs.ToActSeat)
	assert.Equal(t, 100, hs.MinRaise)

	hs, seats = play(t, hs, seats, d, act(0, Call{}))
	assert.Equal(t, Flop, hs.Street)
	assert.Equal(t, 0, hs.BetToMatch)
	assert.Empty(t, hs.Commits)
	assert.Equal(t, 300, hs.Pot)
	assert.Equal(t, 850, seats.Stack(0))
	assert.Equal(t, 850, seats.Stack(1))
	assert.Equal(t, NoSeat, hs.LastAggressorSeat)
	assert.Equal(t, testBB, hs.MinRaise)
}

func TestThreeHandedRaiseCallCallStartsLeftOfDealer(t *testing.T) {
	t.Parallel()

	hs, seats := threeHanded(t)
	require.Equal(t, 0, hs.ToActSeat)

	hs, _ = play(t, hs, seats, freshDeck(),
		act(0, Raise{Amount: 100}),
		act(1, Call{}),
		act(2, Call{}),
	)
	assert.Equal(t, Flop, hs.Street)
	assert.Empty(t, hs.Commits)
	assert.Equal(t, 1, hs.ToActSeat)
	assert.Equal(t, 300, hs.Pot)
}

func TestFoldToOneEndsHand(t *testing.T) {
	t.Parallel()

	t.Run("heads-up", func(t *testing.T) {
		hs, seats := headsUp(t)
		hs, seats = play(t, hs, seats, freshDeck(), act(1, Fold{}))
		assert.Equal(t, Showdown, hs.Street)
		assert.Equal(t, NoSeat, hs.ToActSeat)
		assert.Empty(t, hs.Commits)
		// The big blind's unmatched 25 goes back to its stack.
		assert.Equal(t, 50, hs.Pot)
		assert.Equal(t, 975, seats.Stack(0))
	})

	t.Run("three-handed after a bet", func(t *testing.T) {
		hs, seats := threeHanded(t)
		hs, seats = play(t, hs, seats, freshDeck(),
			act(0, Raise{Amount: 150}),
			act(1, Fold{}),
			act(2, Fold{}),
		)
		assert.Equal(t, Showdown, hs.Street)
		assert.Equal(t, NoSeat, hs.ToActSeat)
		assert.Equal(t, 125, hs.Pot)
		assert.Equal(t, 950, seats.Stack(0))
	})
}

func TestBigBlindKeepsOption(t *testing.T) {
	t.Parallel()

	hs, seats := threeHanded(t)
	d := freshDeck()
	hs, seats = play(t, hs, seats, d, act(0, Call{}), act(1, Call{}))

	// Everyone has matched but the big blind has not acted yet.
	assert.Equal(t, Preflop, hs.Street)
	assert.Equal(t, 2, hs.ToActSeat)

	hs, _ = play(t, hs, seats, d, act(2, Raise{Amount: 50}))
	assert.Equal(t, Preflop, hs.Street)
	assert.Equal(t, 100, hs.BetToMatch)
	assert.Equal(t, 0, hs.ToActSeat)
}

func TestFoldClosesStreetWhenRemainingSeatsMatched(t *testing.T) {
	t.Parallel()

	hs, seats := threeHanded(t)
	hs, _ = play(t, hs, seats, freshDeck(),
		act(0, Call{}),
		act(1, Call{}),
		act(2, Check{}),
		act(1, Bet{Amount: 50}),
		act(2, Call{}),
		act(0, Fold{}),
	)
	assert.Equal(t, Turn, hs.Street)
	assert.Equal(t, 1, hs.ToActSeat)
	assert.Equal(t, 250, hs.Pot)
}

func TestRejections(t *testing.T) {
	t.Parallel()

	postflop := func(t *testing.T) (*HandState, Seats) {
		hs, seats := threeHanded(t)
		return play(t, hs, seats, freshDeck(), act(0, Call{}), act(1, Call{}), act(2, Check{}))
	}

	tests := []struct {
		name   string
		setup  func(t *testing.T) (*HandState, Seats)
		action Action
		want   Reason
	}{
		{"check when owed", threeHanded, act(0, Check{}), ReasonCannotCheckWhenOwed},
		{"out of turn", threeHanded, act(1, Call{}), ReasonNotYourTurn},
		{"bet facing a bet", threeHanded, act(0, Bet{Amount: 100}), ReasonCannotBetWhenAlready},
		{"raise without a bet", postflop, act(1, Raise{Amount: 100}), ReasonCannotRaiseWithoutBet},
		{"zero bet", postflop, act(1, Bet{Amount: 0}), ReasonBadBet},
		{"negative raise", threeHanded, act(0, Raise{Amount: -5}), ReasonBadRaise},
		{"bet above stack", postflop, act(1, Bet{Amount: 5000}), ReasonBadAmount},
		{"raise above stack", threeHanded, act(0, Raise{Amount: 5000}), ReasonBadAmount},
		{"bet below big blind", postflop, act(1, Bet{Amount: 20}), ReasonBetBelowBB},
		{"raise below minimum", threeHanded, act(0, Raise{Amount: 80}), ReasonRaiseBelowMin},
		{"raise that does not exceed the bet", threeHanded, act(0, Raise{Amount: 50}), ReasonBadRaise},
		{"missing move", threeHanded, Action{Seat: 0}, ReasonUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hs, seats := tt.setup(t)
			before := hs.Clone()

			a := tt.action
			a.HandNo = hs.HandNo
			res, err := Apply(hs, seats, freshDeck(), a)
			require.NoError(t, err)
			assert.True(t, res.Rejected())
			assert.Equal(t, tt.want, res.Reason)
			assert.Equal(t, before, hs, "input state must not change")
		})
	}

	t.Run("hand mismatch", func(t *testing.T) {
		hs, seats := headsUp(t)
		res, err := Apply(hs, seats, freshDeck(), Action{HandNo: 99, Seat: 1, Move: Call{}})
		require.NoError(t, err)
		assert.Equal(t, ReasonHandMismatch, res.Reason)
	})
}

func TestMinRaiseFollowsLastFullRaise(t *testing.T) {
	t.Parallel()

	hs, seats := threeHanded(t)
	d := freshDeck()
	// 0 raises to 200 (raise size 150), 1 must raise by at least 150 more.
	hs, seats = play(t, hs, seats, d, act(0, Raise{Amount: 200}))
	assert.Equal(t, 150, hs.MinRaise)

	res, err := Apply(hs, seats, d, Action{HandNo: 1, Seat: 1, Move: Raise{Amount: 300}})
	require.NoError(t, err)
	assert.Equal(t, ReasonRaiseBelowMin, res.Reason)

	hs, _ = play(t, hs, seats, d, act(1, Raise{Amount: 325}))
	assert.Equal(t, 350, hs.BetToMatch)
	assert.Equal(t, 150, hs.MinRaise)
}

func TestCallNeverOverdraws(t *testing.T) {
	t.Parallel()

	hs, seats := buildHand(t, []seatConfig{{0, 1000}, {1, 1000}, {2, 120}}, 0, 1, 2)
	d := freshDeck()
	hs, seats = play(t, hs, seats, d, act(0, Raise{Amount: 400}), act(1, Fold{}), act(2, Call{}))

	// Seat 2 is all-in for 120 and nobody can bet against seat 0, so the
	// board runs out and the uncalled 280 goes back to seat 0.
	assert.Equal(t, 0, seats.Stack(2))
	assert.Equal(t, 880, seats.Stack(0))
	assert.Equal(t, Showdown, hs.Street)
	assert.Len(t, hs.Board, 5)
	assert.Equal(t, NoSeat, hs.ToActSeat)
	assert.Equal(t, 120+25+120, hs.Pot)
}

func TestShortAllInRaiseKeepsMinRaise(t *testing.T) {
	t.Parallel()

	hs, seats := buildHand(t, []seatConfig{{0, 1000}, {1, 1000}, {2, 1000}, {3, 180}}, 0, 1, 2)
	require.Equal(t, 3, hs.ToActSeat)
	d := freshDeck()

	hs, seats = play(t, hs, seats, d,
		act(3, Call{}),
		act(0, Call{}),
		act(1, Call{}),
		act(2, Check{}),
	)
	require.Equal(t, Flop, hs.Street)
	require.Equal(t, 1, hs.ToActSeat)

	hs, seats = play(t, hs, seats, d,
		act(1, Bet{Amount: 100}),
		act(2, Call{}),
		act(3, Raise{Amount: 130}), // all-in, only 30 more than the bet
	)
	assert.Equal(t, 130, hs.BetToMatch)
	assert.Equal(t, 100, hs.MinRaise)
	assert.Equal(t, 3, hs.LastAggressorSeat)
	assert.Equal(t, 0, hs.ToActSeat)

	res, err := Apply(hs, seats, d, Action{HandNo: 1, Seat: 0, Move: Raise{Amount: 200}})
	require.NoError(t, err)
	assert.Equal(t, ReasonRaiseBelowMin, res.Reason)

	hs, _ = play(t, hs, seats, d,
		act(0, Call{}),
		act(1, Call{}),
		act(2, Call{}),
	)
	assert.Equal(t, Turn, hs.Street)
	assert.Equal(t, 200+4*130, hs.Pot)
	assert.Equal(t, 1, hs.ToActSeat)
}

func TestShortAllInBetBelowBigBlind(t *testing.T) {
	t.Parallel()

	hs, seats := buildHand(t, []seatConfig{{0, 1000}, {1, 1000}, {2, 70}}, 0, 1, 2)
	d := freshDeck()
	hs, seats = play(t, hs, seats, d, act(0, Call{}), act(1, Call{}), act(2, Check{}))
	hs, seats = play(t, hs, seats, d, act(1, Check{}))

	// Seat 2 has 20 behind, less than the big blind, and may still shove.
	hs, _ = play(t, hs, seats, d, act(2, Bet{Amount: 20}))
	assert.Equal(t, 20, hs.BetToMatch)
	assert.Equal(t, testBB, hs.MinRaise)
}
