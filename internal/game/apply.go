package game

import "fmt"

// Apply computes the state that follows a. hs and seats are left untouched.
// Closing a street draws from d, so callers pass a deck they will persist
// together with the result.
func Apply(hs *HandState, seats Seats, d Deck, a Action) (Result, error) {
	if hs == nil || a.HandNo != hs.HandNo {
		return reject(ReasonHandMismatch)
	}
	if hs.Street == Showdown || hs.ToActSeat != a.Seat {
		return reject(ReasonNotYourTurn)
	}
	if a.Move == nil {
		return reject(ReasonUnknownAction)
	}
	if _, ok := seats[a.Seat]; !ok {
		return reject(ReasonBadSeat)
	}

	next := hs.Clone()
	next.ensureMaps()
	st := seats.Clone()
	seat := a.Seat
	stack := st.Stack(seat)
	owed := next.Owed(seat)

	switch m := a.Move.(type) {
	case Check:
		if owed > 0 {
			return reject(ReasonCannotCheckWhenOwed)
		}
		next.Acted[seat] = true

	case Call:
		next.commit(st, seat, min(owed, stack))
		next.Acted[seat] = true

	case Bet:
		if next.BetToMatch > 0 {
			return reject(ReasonCannotBetWhenAlready)
		}
		if m.Amount <= 0 {
			return reject(ReasonBadBet)
		}
		if m.Amount > stack {
			return reject(ReasonBadAmount)
		}
		allIn := m.Amount == stack
		if m.Amount < next.BigBlind && !allIn {
			return reject(ReasonBetBelowBB)
		}

		next.commit(st, seat, m.Amount)
		next.BetToMatch = next.Commits[seat]
		next.LastAggressorSeat = seat
		if m.Amount >= next.BigBlind {
			next.MinRaise = m.Amount
		}
		next.Acted = map[int]bool{seat: true}

	case Raise:
		if next.BetToMatch == 0 {
			return reject(ReasonCannotRaiseWithoutBet)
		}
		if m.Amount <= 0 {
			return reject(ReasonBadRaise)
		}
		if m.Amount > stack {
			return reject(ReasonBadAmount)
		}
		target := next.Commits[seat] + m.Amount
		if target <= next.BetToMatch {
			return reject(ReasonBadRaise)
		}
		size := target - next.BetToMatch
		allIn := m.Amount == stack
		full := size >= max(next.BigBlind, next.MinRaise)
		if !full && !allIn {
			return reject(ReasonRaiseBelowMin)
		}

		next.commit(st, seat, m.Amount)
		next.BetToMatch = target
		next.LastAggressorSeat = seat
		if full {
			// A full raise reopens the action for everyone else.
			next.MinRaise = size
			next.Acted = map[int]bool{seat: true}
		} else {
			next.Acted[seat] = true
		}

	case Fold:
		next.Folded[seat] = true

	default:
		return reject(ReasonUnknownAction)
	}

	if err := next.afterAction(st, d, seat); err != nil {
		return Result{}, err
	}
	return Result{State: next, Seats: st}, nil
}

// afterAction ends the hand, closes the street or passes the turn
func (h *HandState) afterAction(seats Seats, d Deck, from int) error {
	if len(h.Contenders()) <= 1 {
		h.finish(seats)
		return nil
	}
	if h.roundClosed(seats) {
		return h.closeStreet(seats, d)
	}
	h.ToActSeat = NextActive(h.Players, seats, from, h.Folded)
	if h.ToActSeat == from && (h.Folded[from] || seats.Stack(from) == 0) {
		return fmt.Errorf("hand %d: no seat can act after seat %d", h.HandNo, from)
	}
	return nil
}
