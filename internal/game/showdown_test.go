package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/deck"
)

func TestSettleLoneContenderTakesPot(t *testing.T) {
	t.Parallel()

	hs, seats := threeHanded(t)
	hs, seats = play(t, hs, seats, freshDeck(), act(0, Fold{}), act(1, Fold{}))

	res, err := Settle(hs, seats, nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{2: 50}, res.State.Payouts)
	assert.Equal(t, 1025, res.Seats.Stack(2))
	assert.True(t, res.State.Settled)
	assert.Empty(t, res.State.Board, "no cards are dealt when everyone folded")
}

func TestSettleBestHandWins(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	hs.Holes = map[int][]deck.Card{
		0: deck.MustParseCards("AhAd"),
		1: deck.MustParseCards("7c2d"),
	}
	d := deck.FromCards(deck.MustParseCards("3s" + "Ks9h4c" + "5s" + "Jd" + "6s" + "8c"))
	hs, seats = play(t, hs, seats, d, act(1, Call{}), act(0, Check{}))

	res, err := ForceShowdown(hs, seats)
	require.NoError(t, err)
	res, err = Settle(res.State, res.Seats, d)
	require.NoError(t, err)

	assert.Equal(t, deck.MustParseCards("Ks9h4cJd8c"), res.State.Board)
	assert.Equal(t, map[int]int{0: 100}, res.State.Payouts)
	assert.Equal(t, 1050, res.Seats.Stack(0))
	assert.Equal(t, 950, res.Seats.Stack(1))
}

func TestSettleSplitsTiesWithOddChipLeftOfDealer(t *testing.T) {
	t.Parallel()

	hs, seats := threeHanded(t)
	hs.Holes = map[int][]deck.Card{
		0: deck.MustParseCards("2c3d"),
		1: deck.MustParseCards("4c5d"),
		2: deck.MustParseCards("6c7d"),
	}
	hs.Board = deck.MustParseCards("AsKsQsJsTs")
	hs.Street = Showdown
	hs.ToActSeat = NoSeat
	hs.Pot = 101
	hs.Commits = map[int]int{}

	res, err := Settle(hs, seats, nil)
	require.NoError(t, err)
	// Odd chips go round from the dealer's left: seats 1 and 2.
	assert.Equal(t, map[int]int{0: 33, 1: 34, 2: 34}, res.State.Payouts)
}

func TestSettleOmaha(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	hs.Variant = Omaha
	hs.Holes = map[int][]deck.Card{
		0: deck.MustParseCards("AhKsKdQc"), // one heart: no flush
		1: deck.MustParseCards("3h4h8c8d"), // two hearts: flush
	}
	hs.Board = deck.MustParseCards("2h5h9hJh3c")
	hs.Street = Showdown
	hs.ToActSeat = NoSeat
	hs.Pot = 200
	hs.Commits = map[int]int{}

	res, err := Settle(hs, seats, nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 200}, res.State.Payouts)
}

func TestSettleErrors(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	_, err := Settle(hs, seats, freshDeck())
	assert.Error(t, err, "cannot settle before showdown")

	res, err := ForceShowdown(hs, seats)
	require.NoError(t, err)
	_, err = Settle(res.State, res.Seats, freshDeck())
	assert.Error(t, err, "missing hole cards")
}

func TestSettleIsIdempotent(t *testing.T) {
	t.Parallel()

	hs, seats := headsUp(t)
	hs, seats = play(t, hs, seats, freshDeck(), act(1, Fold{}))
	first, err := Settle(hs, seats, nil)
	require.NoError(t, err)
	second, err := Settle(first.State, first.Seats, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Seats, second.Seats)
}
