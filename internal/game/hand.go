package game

import (
	"fmt"
	"maps"
	"time"

	"github.com/Mappledude/jampoker/internal/deck"
)

// Variant selects the number of hole cards and how hands are ranked
type Variant string

const (
	Holdem Variant = "holdem"
	Omaha  Variant = "omaha"
)

// HoleCards returns the number of private cards each seat receives
func (v Variant) HoleCards() int {
	if v == Omaha {
		return 4
	}
	return 2
}

// ParseVariant normalises a variant name; anything unknown is an error
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case Holdem, "":
		return Holdem, nil
	case Omaha:
		return Omaha, nil
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// Deck is the card source consumed when streets are dealt
type Deck interface {
	Burn() error
	Draw(n int) ([]deck.Card, error)
}

// HandState represents the state of one hand at a table
type HandState struct {
	TableID    string  `json:"tableId"`
	HandNo     int     `json:"handNo"`
	Variant    Variant `json:"variant"`
	Street     Street  `json:"street"`
	DealerSeat int     `json:"dealerSeat"`
	SBSeat     int     `json:"sbSeat"`
	BBSeat     int     `json:"bbSeat"`
	SmallBlind int     `json:"smallBlindCents"`
	BigBlind   int     `json:"bigBlindCents"`

	// Players holds the seats dealt into the hand, sorted by index
	Players []int `json:"players"`

	ToActSeat         int          `json:"toActSeat"`
	BetToMatch        int          `json:"betToMatchCents"`
	Commits           map[int]int  `json:"commits"`
	HandCommits       map[int]int  `json:"handCommits"`
	Folded            map[int]bool `json:"folded"`
	Acted             map[int]bool `json:"acted"`
	LastAggressorSeat int          `json:"lastAggressorSeat"`
	MinRaise          int          `json:"minRaiseCents"`
	Pot               int          `json:"potCents"`

	Board   []deck.Card         `json:"board"`
	Holes   map[int][]deck.Card `json:"holes,omitempty"`
	Payouts map[int]int         `json:"payouts,omitempty"`
	Settled bool                `json:"settled"`

	Version   int       `json:"version"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy
func (h *HandState) Clone() *HandState {
	if h == nil {
		return nil
	}
	c := *h
	c.Players = append([]int(nil), h.Players...)
	c.Commits = cloneMap(h.Commits)
	c.HandCommits = cloneMap(h.HandCommits)
	c.Folded = cloneMap(h.Folded)
	c.Acted = cloneMap(h.Acted)
	c.Payouts = cloneMap(h.Payouts)
	c.Board = append([]deck.Card(nil), h.Board...)
	if h.Holes != nil {
		c.Holes = make(map[int][]deck.Card, len(h.Holes))
		for seat, cards := range h.Holes {
			c.Holes[seat] = append([]deck.Card(nil), cards...)
		}
	}
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	maps.Copy(out, m)
	return out
}

// Redacted returns a copy without hole cards, safe to publish
func (h *HandState) Redacted() *HandState {
	c := h.Clone()
	c.Holes = nil
	return c
}

// IsComplete returns true once the hand has reached showdown
func (h *HandState) IsComplete() bool {
	return h.Street == Showdown
}

// InHand returns true if seat was dealt into this hand
func (h *HandState) InHand(seat int) bool {
	for _, p := range h.Players {
		if p == seat {
			return true
		}
	}
	return false
}

// Owed returns what seat must add to match the current bet
func (h *HandState) Owed(seat int) int {
	return max(0, h.BetToMatch-h.Commits[seat])
}

// ChipsInPlay is the pot plus everything committed on the current street
func (h *HandState) ChipsInPlay() int {
	return h.Pot + sumCommits(h.Commits)
}

// Contenders returns the seats still holding cards, in seat order
func (h *HandState) Contenders() []int {
	var out []int
	for _, p := range h.Players {
		if !h.Folded[p] {
			out = append(out, p)
		}
	}
	return out
}

// commit moves amount from the seat's stack onto the street
func (h *HandState) commit(seats Seats, seat, amount int) {
	if amount <= 0 {
		return
	}
	seats.debit(seat, amount)
	h.Commits[seat] += amount
	h.HandCommits[seat] += amount
}

// Post puts a forced blind for seat, capped at its stack. It returns the
// amount actually posted.
func (h *HandState) Post(seats Seats, seat, blind int) int {
	amount := min(blind, seats.Stack(seat))
	h.commit(seats, seat, amount)
	h.BetToMatch = max(h.BetToMatch, h.Commits[seat])
	return amount
}

// ensureMaps makes the zero value safe to mutate
func (h *HandState) ensureMaps() {
	if h.Commits == nil {
		h.Commits = map[int]int{}
	}
	if h.HandCommits == nil {
		h.HandCommits = map[int]int{}
	}
	if h.Folded == nil {
		h.Folded = map[int]bool{}
	}
	if h.Acted == nil {
		h.Acted = map[int]bool{}
	}
}
