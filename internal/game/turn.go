package game

// NextActive walks players (sorted seat indices) forward from the seat after
// from, wrapping around, and returns the first seat that is not folded and
// still has chips. If no seat qualifies it returns from.
func NextActive(players []int, seats Seats, from int, folded map[int]bool) int {
	n := len(players)
	if n == 0 {
		return from
	}

	start := 0
	for i, p := range players {
		if p > from {
			start = i
			break
		}
	}

	for k := 0; k < n; k++ {
		seat := players[(start+k)%n]
		if seat == from {
			continue
		}
		if !folded[seat] && seats.Stack(seat) > 0 {
			return seat
		}
	}
	return from
}

// actors returns the seats that can still make decisions: dealt in, not
// folded and not all-in
func (h *HandState) actors(seats Seats) []int {
	var out []int
	for _, p := range h.Players {
		if !h.Folded[p] && seats.Stack(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// roundClosed reports whether betting on the current street is finished
func (h *HandState) roundClosed(seats Seats) bool {
	actors := h.actors(seats)
	switch len(actors) {
	case 0:
		return true
	case 1:
		// Nobody left to bet against; only a shortfall needs answering.
		return h.Commits[actors[0]] >= h.BetToMatch
	}

	for _, seat := range actors {
		if !h.Acted[seat] || h.Commits[seat] != h.BetToMatch {
			return false
		}
	}
	return true
}

// streetStarter returns the first seat to act after the flop: the first
// eligible seat left of the dealer, which heads-up is the big blind
func (h *HandState) streetStarter(seats Seats) int {
	return NextActive(h.Players, seats, h.DealerSeat, h.Folded)
}
