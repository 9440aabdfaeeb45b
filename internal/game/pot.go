package game

func sumCommits(commits map[int]int) int {
	total := 0
	for _, v := range commits {
		total += v
	}
	return total
}

// maxCommit returns the highest street commitment, or 0 if nobody has committed
func maxCommit(commits map[int]int) int {
	highest := 0
	for _, v := range commits {
		highest = max(highest, v)
	}
	return highest
}

// returnUncalled gives back the part of the top commitment nobody matched.
// A folded seat's chips stay in the pot.
func (h *HandState) returnUncalled(seats Seats) {
	top, second, topSeat := 0, 0, NoSeat
	for seat, v := range h.Commits {
		switch {
		case v > top:
			second, top, topSeat = top, v, seat
		case v > second:
			second = v
		}
	}
	excess := top - second
	if topSeat == NoSeat || excess <= 0 || h.Folded[topSeat] {
		return
	}
	if _, ok := seats[topSeat]; !ok {
		return
	}
	h.Commits[topSeat] -= excess
	h.HandCommits[topSeat] -= excess
	seats.credit(topSeat, excess)
}

// collect banks the street's commitments into the pot and resets the
// per-street betting state
func (h *HandState) collect(seats Seats) {
	h.returnUncalled(seats)
	h.Pot += sumCommits(h.Commits)
	h.Commits = map[int]int{}
	h.Acted = map[int]bool{}
	h.BetToMatch = 0
	h.LastAggressorSeat = NoSeat
	h.MinRaise = h.BigBlind
}
