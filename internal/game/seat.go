package game

import "sort"

// NoSeat marks a missing seat reference (nobody to act, no aggressor)
const NoSeat = -1

// Seat is a table position and the chips in front of it
type Seat struct {
	Index    int    `json:"index"`
	Occupant string `json:"occupant,omitempty"`
	Stack    int    `json:"stackCents"`
	Leaving  bool   `json:"leaving,omitempty"`
}

// Occupied returns true if a player sits in the seat
func (s Seat) Occupied() bool {
	return s.Occupant != ""
}

// Seats maps seat index to seat
type Seats map[int]Seat

// Clone returns a copy that can be modified independently
func (s Seats) Clone() Seats {
	out := make(Seats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Stack returns the chips behind a seat, or 0 if the seat is unknown
func (s Seats) Stack(idx int) int {
	return s[idx].Stack
}

// Sorted returns all seats ordered by index
func (s Seats) Sorted() []Seat {
	out := make([]Seat, 0, len(s))
	for _, seat := range s {
		out = append(out, seat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Eligible returns the sorted indices of seats that can be dealt into a new
// hand: occupied, with chips, and not on their way out
func (s Seats) Eligible() []int {
	var out []int
	for _, seat := range s.Sorted() {
		if seat.Occupied() && seat.Stack > 0 && !seat.Leaving {
			out = append(out, seat.Index)
		}
	}
	return out
}

// Total returns the sum of all stacks
func (s Seats) Total() int {
	total := 0
	for _, seat := range s {
		total += seat.Stack
	}
	return total
}

func (s Seats) debit(idx, amount int) {
	seat := s[idx]
	seat.Stack -= amount
	s[idx] = seat
}

func (s Seats) credit(idx, amount int) {
	seat := s[idx]
	seat.Stack += amount
	s[idx] = seat
}
