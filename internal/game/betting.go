package game

import (
	"fmt"
	"strings"
)

// Street represents the betting round
type Street int

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

var streetNames = [...]string{"preflop", "flop", "turn", "river", "showdown"}

func (s Street) String() string {
	if s < Preflop || s > Showdown {
		return fmt.Sprintf("street(%d)", int(s))
	}
	return streetNames[s]
}

// MarshalText encodes the street by name
func (s Street) MarshalText() ([]byte, error) {
	if s < Preflop || s > Showdown {
		return nil, fmt.Errorf("invalid street %d", int(s))
	}
	return []byte(streetNames[s]), nil
}

// UnmarshalText decodes a street name
func (s *Street) UnmarshalText(text []byte) error {
	for i, name := range streetNames {
		if name == string(text) {
			*s = Street(i)
			return nil
		}
	}
	return fmt.Errorf("unknown street %q", text)
}

// boardSize is the number of community cards visible on each street
func (s Street) boardSize() int {
	return [...]int{0, 3, 4, 5, 5}[s]
}

// ActionType identifies the kind of a player action
type ActionType int

const (
	ActionCheck ActionType = iota
	ActionCall
	ActionBet
	ActionRaise
	ActionFold
)

var actionNames = [...]string{"check", "call", "bet", "raise", "fold"}

func (a ActionType) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

func (a ActionType) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionNames) {
		return nil, fmt.Errorf("unknown action type %d", int(a))
	}
	return []byte(actionNames[a]), nil
}

func (a *ActionType) UnmarshalText(text []byte) error {
	at, ok := ParseActionType(string(text))
	if !ok {
		return fmt.Errorf("unknown action type %q", text)
	}
	*a = at
	return nil
}

// ParseActionType maps a wire name onto an ActionType
func ParseActionType(s string) (ActionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "check":
		return ActionCheck, true
	case "call":
		return ActionCall, true
	case "bet":
		return ActionBet, true
	case "raise":
		return ActionRaise, true
	case "fold":
		return ActionFold, true
	}
	return 0, false
}

// Move is the tagged variant for a betting decision. Exactly one of Check,
// Call, Bet, Raise and Fold implements it.
type Move interface {
	Type() ActionType
}

// Check passes when nothing is owed
type Check struct{}

// Call matches the bet, going all-in when short
type Call struct{}

// Fold gives up the hand
type Fold struct{}

// Bet opens the betting on a street with Amount chips
type Bet struct{ Amount int }

// Raise adds Amount chips on top of the seat's current commitment
type Raise struct{ Amount int }

func (Check) Type() ActionType { return ActionCheck }
func (Call) Type() ActionType  { return ActionCall }
func (Fold) Type() ActionType  { return ActionFold }
func (Bet) Type() ActionType   { return ActionBet }
func (Raise) Type() ActionType { return ActionRaise }

// NewMove builds the variant for t; amount is ignored for check, call and fold
func NewMove(t ActionType, amount int) Move {
	switch t {
	case ActionCheck:
		return Check{}
	case ActionCall:
		return Call{}
	case ActionBet:
		return Bet{Amount: amount}
	case ActionRaise:
		return Raise{Amount: amount}
	case ActionFold:
		return Fold{}
	}
	return nil
}

// Amount returns the chip amount carried by a bet or raise, 0 otherwise
func Amount(m Move) int {
	switch v := m.(type) {
	case Bet:
		return v.Amount
	case Raise:
		return v.Amount
	}
	return 0
}

// Action is a decision submitted by the seat for a given hand
type Action struct {
	HandNo int
	Seat   int
	Actor  string
	Move   Move
}
