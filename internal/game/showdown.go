package game

import (
	"fmt"

	"github.com/Mappledude/jampoker/internal/deck"
)

// Settle awards the pot of a hand at showdown. A lone contender takes it all.
// Otherwise the board is completed from d, hands are ranked and tied
// winners split the pot, odd chips going to the first winner left of the
// dealer. The whole pot goes to the best hand; no side pots are formed.
func Settle(hs *HandState, seats Seats, d Deck) (Result, error) {
	if hs == nil {
		return reject(ReasonHandMismatch)
	}
	if hs.Street != Showdown {
		return Result{}, fmt.Errorf("hand %d: settle on %s", hs.HandNo, hs.Street)
	}

	next := hs.Clone()
	next.ensureMaps()
	st := seats.Clone()
	if next.Settled {
		return Result{State: next, Seats: st}, nil
	}

	next.collect(st)
	contenders := next.Contenders()
	payouts := map[int]int{}

	switch len(contenders) {
	case 0:
		return Result{}, fmt.Errorf("hand %d: no contenders at showdown", next.HandNo)
	case 1:
		payouts[contenders[0]] = next.Pot
	default:
		for street := Flop; street <= River; street++ {
			if err := next.deal(d, street); err != nil {
				return Result{}, err
			}
		}
		winners, err := next.winners(contenders)
		if err != nil {
			return Result{}, err
		}
		share, odd := next.Pot/len(winners), next.Pot%len(winners)
		for i, w := range winners {
			payouts[w] = share
			if i < odd {
				payouts[w]++
			}
		}
	}

	for seat, amount := range payouts {
		st.credit(seat, amount)
	}
	next.Payouts = payouts
	next.Settled = true
	return Result{State: next, Seats: st}, nil
}

// winners returns the best-ranked contenders ordered from the dealer's left
func (h *HandState) winners(contenders []int) ([]int, error) {
	scores := make(map[int]deck.Score, len(contenders))
	best := deck.Score(-1 << 15)
	for _, seat := range contenders {
		hole := h.Holes[seat]
		if len(hole) != h.Variant.HoleCards() {
			return nil, fmt.Errorf("hand %d: seat %d has %d hole cards", h.HandNo, seat, len(hole))
		}

		var score deck.Score
		var err error
		if h.Variant == Omaha {
			score, err = deck.BestOmaha(hole, h.Board)
		} else {
			score, err = deck.Best(append(append([]deck.Card(nil), hole...), h.Board...))
		}
		if err != nil {
			return nil, fmt.Errorf("hand %d: rank seat %d: %w", h.HandNo, seat, err)
		}
		scores[seat] = score
		best = max(best, score)
	}

	var out []int
	for _, seat := range h.fromDealer() {
		if s, ok := scores[seat]; ok && s == best {
			out = append(out, seat)
		}
	}
	return out, nil
}

// fromDealer lists the dealt-in seats starting left of the dealer
func (h *HandState) fromDealer() []int {
	n := len(h.Players)
	start := 0
	for i, p := range h.Players {
		if p > h.DealerSeat {
			start = i
			break
		}
	}
	out := make([]int, 0, n)
	for k := 0; k < n; k++ {
		out = append(out, h.Players[(start+k)%n])
	}
	return out
}
