package game

// Reason is a stable, client-visible rejection code
type Reason string

const (
	ReasonNotYourTurn           Reason = "not-your-turn"
	ReasonBadSeat               Reason = "bad-seat"
	ReasonSeatEmpty             Reason = "seat-empty"
	ReasonActorSeatMismatch     Reason = "actor-seat-mismatch"
	ReasonHandMismatch          Reason = "hand-mismatch"
	ReasonCannotCheckWhenOwed   Reason = "cannot-check-when-owed"
	ReasonBadAmount             Reason = "bad-amount"
	ReasonBadBet                Reason = "bad-bet"
	ReasonBadRaise              Reason = "bad-raise"
	ReasonBetBelowBB            Reason = "bet-below-bb"
	ReasonRaiseBelowMin         Reason = "raise-below-min"
	ReasonCannotBetWhenAlready  Reason = "cannot-bet-when-already-bet"
	ReasonCannotRaiseWithoutBet Reason = "cannot-raise-without-bet"
	ReasonHandComplete          Reason = "hand-complete"
	ReasonUnknownAction         Reason = "unknown-action"
)

func (r Reason) String() string { return string(r) }

// Result is the outcome of a transition: either the next state or a rejection
type Result struct {
	State  *HandState
	Seats  Seats
	Reason Reason
}

// Rejected returns true if the transition was refused
func (r Result) Rejected() bool {
	return r.Reason != ""
}

func reject(reason Reason) (Result, error) {
	return Result{Reason: reason}, nil
}
