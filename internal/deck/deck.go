package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// ErrExhausted is returned when a burn or deal needs more cards than remain
var ErrExhausted = errors.New("deck exhausted")

// Deck represents the stub of a shuffled deck for one hand
type Deck struct {
	cards  []Card
	burned []Card
}

// Standard returns all 52 cards in a fixed order
func Standard() []Card {
	cards := make([]Card, 0, 52)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	return cards
}

// New creates a full 52-card deck shuffled with rng
func New(rng *rand.Rand) *Deck {
	d := &Deck{cards: Standard()}
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
	return d
}

// FromCards creates a deck that deals cards in the given order
func FromCards(cards []Card) *Deck {
	return &Deck{cards: append([]Card(nil), cards...)}
}

// Draw removes and returns the top n cards
func (d *Deck) Draw(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, fmt.Errorf("draw %d of %d: %w", n, len(d.cards), ErrExhausted)
	}
	out := append([]Card(nil), d.cards[:n]...)
	d.cards = d.cards[n:]
	return out, nil
}

// Burn discards the top card
func (d *Deck) Burn() error {
	if len(d.cards) == 0 {
		return fmt.Errorf("burn: %w", ErrExhausted)
	}
	d.burned = append(d.burned, d.cards[0])
	d.cards = d.cards[1:]
	return nil
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Burned returns the cards burned so far
func (d *Deck) Burned() []Card {
	return append([]Card(nil), d.burned...)
}

// Clone returns an independent copy
func (d *Deck) Clone() *Deck {
	if d == nil {
		return nil
	}
	return &Deck{
		cards:  append([]Card(nil), d.cards...),
		burned: append([]Card(nil), d.burned...),
	}
}

type deckJSON struct {
	Remaining []Card `json:"remaining"`
	Burned    []Card `json:"burned"`
}

// MarshalJSON persists the remaining and burned cards
func (d *Deck) MarshalJSON() ([]byte, error) {
	return json.Marshal(deckJSON{Remaining: d.cards, Burned: d.burned})
}

// UnmarshalJSON restores a persisted deck
func (d *Deck) UnmarshalJSON(data []byte) error {
	var v deckJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	d.cards = v.Remaining
	d.burned = v.Burned
	return nil
}
