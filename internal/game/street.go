package game

import "fmt"

// closeStreet banks the street and deals the next one. When fewer than two
// seats can act it keeps dealing until showdown.
func (h *HandState) closeStreet(seats Seats, d Deck) error {
	for {
		h.collect(seats)
		if h.Street >= River {
			h.Street = Showdown
			h.ToActSeat = NoSeat
			return nil
		}

		if err := h.deal(d, h.Street+1); err != nil {
			return err
		}
		h.Street++

		if len(h.actors(seats)) >= 2 {
			h.ToActSeat = h.streetStarter(seats)
			return nil
		}
	}
}

// deal burns one card and fills the board up to the size for street
func (h *HandState) deal(d Deck, street Street) error {
	need := street.boardSize() - len(h.Board)
	if need <= 0 {
		return nil
	}
	if d == nil {
		return fmt.Errorf("deal %s: no deck", street)
	}
	if err := d.Burn(); err != nil {
		return fmt.Errorf("deal %s: %w", street, err)
	}
	cards, err := d.Draw(need)
	if err != nil {
		return fmt.Errorf("deal %s: %w", street, err)
	}
	h.Board = append(h.Board, cards...)
	return nil
}

// finish ends the betting: the street's chips go to the pot and nobody acts
func (h *HandState) finish(seats Seats) {
	h.collect(seats)
	h.Street = Showdown
	h.ToActSeat = NoSeat
}

// Begin checks a freshly dealt hand: when the blinds leave nobody able to
// act, the board is run out to showdown.
func Begin(hs *HandState, seats Seats, d Deck) (Result, error) {
	next := hs.Clone()
	next.ensureMaps()
	st := seats.Clone()

	switch {
	case len(next.Contenders()) <= 1:
		next.finish(st)
	case next.roundClosed(st):
		if err := next.closeStreet(st, d); err != nil {
			return Result{}, err
		}
	}
	return Result{State: next, Seats: st}, nil
}

// AdvanceStreet closes the current street without waiting for betting to
// finish. It is an operator override.
func AdvanceStreet(hs *HandState, seats Seats, d Deck) (Result, error) {
	if hs == nil {
		return reject(ReasonHandMismatch)
	}
	if hs.Street == Showdown {
		return reject(ReasonHandComplete)
	}

	next := hs.Clone()
	next.ensureMaps()
	st := seats.Clone()

	if len(next.Contenders()) <= 1 {
		next.finish(st)
	} else if err := next.closeStreet(st, d); err != nil {
		return Result{}, err
	}
	return Result{State: next, Seats: st}, nil
}

// ForceShowdown ends the betting immediately. It is an operator override;
// missing board cards are dealt when the hand is settled.
func ForceShowdown(hs *HandState, seats Seats) (Result, error) {
	if hs == nil {
		return reject(ReasonHandMismatch)
	}
	if hs.Street == Showdown {
		return reject(ReasonHandComplete)
	}

	next := hs.Clone()
	next.ensureMaps()
	st := seats.Clone()
	next.finish(st)
	return Result{State: next, Seats: st}, nil
}

// FoldSeat folds seat out of turn, as when its player leaves the table. The
// turn only moves if it was that seat's turn.
func FoldSeat(hs *HandState, seats Seats, d Deck, seat int) (Result, error) {
	if hs == nil {
		return reject(ReasonHandMismatch)
	}
	if hs.Street == Showdown {
		return reject(ReasonHandComplete)
	}
	if !hs.InHand(seat) || hs.Folded[seat] {
		return reject(ReasonBadSeat)
	}

	next := hs.Clone()
	next.ensureMaps()
	st := seats.Clone()
	next.Folded[seat] = true

	var err error
	switch {
	case next.ToActSeat == seat:
		err = next.afterAction(st, d, seat)
	case len(next.Contenders()) <= 1:
		next.finish(st)
	case next.roundClosed(st):
		err = next.closeStreet(st, d)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{State: next, Seats: st}, nil
}
