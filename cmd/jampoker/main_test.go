package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

func sampleHand() (*game.HandState, game.Seats) {
	hs := &game.HandState{
		TableID:     "t1",
		HandNo:      3,
		Street:      game.Flop,
		DealerSeat:  0,
		SBSeat:      1,
		BBSeat:      2,
		Players:     []int{0, 1, 2},
		ToActSeat:   1,
		BetToMatch:  0,
		MinRaise:    50,
		Pot:         150,
		Commits:     map[int]int{},
		HandCommits: map[int]int{0: 50, 1: 50, 2: 50},
		Folded:      map[int]bool{0: true},
		Board:       deck.MustParseCards("AsKd7c"),
		Holes: map[int][]deck.Card{
			0: deck.MustParseCards("2h3h"),
			1: deck.MustParseCards("QcQd"),
			2: deck.MustParseCards("JsTs"),
		},
		Version: 4,
	}
	seats := game.Seats{
		0: {Index: 0, Occupant: "alice", Stack: 950},
		1: {Index: 1, Occupant: "bob", Stack: 950},
		2: {Index: 2, Occupant: "carol", Stack: 950},
		3: {Index: 3},
	}
	return hs, seats
}

func TestRenderHand(t *testing.T) {
	hs, seats := sampleHand()

	out := renderHand(hs, seats, false)
	assert.Contains(t, out, "hand #3")
	assert.Contains(t, out, "flop")
	assert.Contains(t, out, "A♠ K♦ 7♣")
	assert.Contains(t, out, "Pot 150")
	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "to act")
	assert.Contains(t, out, "folded")
	assert.Contains(t, out, "D")
	assert.NotContains(t, out, "Q♣")
	assert.NotContains(t, out, "CARDS")

	withHoles := renderHand(hs, seats, true)
	assert.Contains(t, withHoles, "CARDS")
	assert.Contains(t, withHoles, "Q♣ Q♦")
}

func TestRenderHandPayouts(t *testing.T) {
	hs, seats := sampleHand()
	hs.Street = game.Showdown
	hs.Settled = true
	hs.Board = deck.MustParseCards("AsKd7c2d9h")
	hs.Payouts = map[int]int{1: 150}

	out := renderHand(hs, seats, false)
	assert.Contains(t, out, "showdown")
	assert.Contains(t, out, "Seat 1 wins 150 with QQ-A-K-9")
	assert.NotContains(t, out, "to act")

	// An uncontested pot shows no hand.
	hs.Folded[2] = true
	out = renderHand(hs, seats, false)
	assert.Contains(t, out, "Seat 1 wins 150")
	assert.NotContains(t, out, "wins 150 with")
}

func TestRenderTables(t *testing.T) {
	assert.Contains(t, renderTables(nil), "no tables")

	out := renderTables([]store.Table{
		{ID: "main", Variant: game.Holdem, SmallBlind: 25, BigBlind: 50, MaxSeats: 6, DealerSeat: game.NoSeat},
		{ID: "plo", Variant: game.Omaha, SmallBlind: 5, BigBlind: 10, MaxSeats: 9, DealerSeat: 4, HandNo: 12, Operator: "op"},
	})
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "25/50")
	assert.Contains(t, out, "omaha")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "op")
}
