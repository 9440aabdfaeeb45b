// Package store persists tables, seats, hands, decks and actions, and runs
// read-modify-write transactions against a single table.
//
// Every backend provides the same guarantee: the closure passed to RunTx
// sees one consistent snapshot of a table, and its writes either all commit
// or none do. When another transaction committed first the backend reports
// ErrConflict and RunTx runs the closure again on a fresh snapshot.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a concurrent transaction won the race
	ErrConflict = errors.New("write conflict")
	// ErrExists is returned when creating a record whose key is taken
	ErrExists = errors.New("already exists")
)

// Status is the resolution of an action
type Status string

const (
	StatusPending Status = "pending"
	StatusApplied Status = "applied"
	StatusInvalid Status = "invalid"
	StatusError   Status = "error"
)

// Table holds the configuration and rotation bookkeeping of one table
type Table struct {
	ID         string       `json:"id"`
	Variant    game.Variant `json:"variant"`
	SmallBlind int          `json:"smallBlindCents"`
	BigBlind   int          `json:"bigBlindCents"`
	MaxSeats   int          `json:"maxSeats"`
	Operator   string       `json:"operator,omitempty"`
	// DealerSeat is the dealer of the last hand, game.NoSeat before the first
	DealerSeat int       `json:"dealerSeat"`
	HandNo     int       `json:"handNo"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ValidSeat returns true if idx is a seat position at the table
func (t Table) ValidSeat(idx int) bool {
	return idx >= 0 && idx < t.MaxSeats
}

// Action is a persisted player intent and, once resolved, its outcome
type Action struct {
	ID      string          `json:"id"`
	TableID string          `json:"tableId"`
	HandNo  int             `json:"handNo"`
	Seat    int             `json:"seat"`
	Actor   string          `json:"actor,omitempty"`
	Type    game.ActionType `json:"type"`
	Amount  int             `json:"amountCents,omitempty"`

	Status  Status      `json:"status"`
	Reason  game.Reason `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
	// Version is the hand version produced by an applied action
	Version int `json:"version,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	ResolvedAt time.Time `json:"resolvedAt,omitzero"`
}

// Resolved returns true once the action left the pending state
func (a Action) Resolved() bool {
	return a.Status != StatusPending && a.Status != ""
}

// Move converts the record into a state machine move
func (a Action) Move() game.Move {
	return game.NewMove(a.Type, a.Amount)
}

// GameAction converts the record into the state machine's action type
func (a Action) GameAction() game.Action {
	return game.Action{HandNo: a.HandNo, Seat: a.Seat, Actor: a.Actor, Move: a.Move()}
}

// Tx is a transaction scoped to one table. Reads return copies; nothing is
// visible to other transactions until the closure returns nil.
type Tx interface {
	Table(ctx context.Context) (Table, error)
	SaveTable(ctx context.Context, t Table) error

	// Hand returns ErrNotFound before the first hand is dealt
	Hand(ctx context.Context) (*game.HandState, error)
	// SaveHand fails with ErrConflict unless hs.Version is exactly one past
	// the stored version (or 1 when no hand is stored)
	SaveHand(ctx context.Context, hs *game.HandState) error

	Deck(ctx context.Context) (*deck.Deck, error)
	SaveDeck(ctx context.Context, d *deck.Deck) error

	Seats(ctx context.Context) (game.Seats, error)
	// SaveSeats writes every seat in seats; seats not present are untouched
	SaveSeats(ctx context.Context, seats game.Seats) error

	Action(ctx context.Context, id string) (Action, error)
	SaveAction(ctx context.Context, a Action) error

	// Credit adds amount to owner's bank balance
	Credit(ctx context.Context, owner string, amount int) error
}

// TxFunc is the body of a transaction
type TxFunc func(ctx context.Context, tx Tx) error

// Store is implemented by every backend
type Store interface {
	CreateTable(ctx context.Context, t Table) error
	Tables(ctx context.Context) ([]Table, error)

	// RunTx runs fn in a transaction against tableID, retrying on ErrConflict
	RunTx(ctx context.Context, tableID string, fn TxFunc) error

	// Enqueue appends a pending action. Actions are never deleted.
	Enqueue(ctx context.Context, a Action) error
	Action(ctx context.Context, tableID, id string) (Action, error)
	// Pending returns up to limit pending actions, oldest first
	Pending(ctx context.Context, tableID string, limit int) ([]Action, error)

	Hand(ctx context.Context, tableID string) (*game.HandState, error)
	Seats(ctx context.Context, tableID string) (game.Seats, error)
	Balance(ctx context.Context, owner string) (int, error)

	Close() error
}
