// Package gateway applies player actions and operator overrides to the hand
// stored for a table. Each operation is one store transaction: it reads the
// hand, seats, deck and action from the same snapshot, runs the state
// machine and writes everything back together, so two submitters can never
// both act on the same version of a hand.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

// Resolution is the recorded outcome of an action
type Resolution struct {
	ActionID string       `json:"actionId"`
	Status   store.Status `json:"status"`
	Reason   game.Reason  `json:"reason,omitempty"`
	Message  string       `json:"message,omitempty"`
	Version  int          `json:"version,omitempty"`
}

func resolutionOf(a store.Action) Resolution {
	return Resolution{ActionID: a.ID, Status: a.Status, Reason: a.Reason, Message: a.Message, Version: a.Version}
}

// Gateway serialises access to the hands of all tables in a store
type Gateway struct {
	store  store.Store
	logger *log.Logger
	clock  quartz.Clock
	pub    Publisher
}

// Option configures a Gateway
type Option func(*Gateway)

// WithPublisher sets where committed changes are sent
func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.pub = p }
}

// WithClock sets the clock used for timestamps
func WithClock(c quartz.Clock) Option {
	return func(g *Gateway) { g.clock = c }
}

// New creates a gateway over st
func New(st store.Store, logger *log.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		store:  st,
		logger: logger.WithPrefix("gateway"),
		clock:  quartz.NewReal(),
		pub:    nopPublisher{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) now() time.Time {
	return g.clock.Now().UTC()
}

func (g *Gateway) newBatch(tableID string) *batch {
	return &batch{tableID: tableID, at: g.now()}
}

func (g *Gateway) publish(b *batch) {
	if b == nil {
		return
	}
	for _, e := range b.events {
		g.pub.Publish(e)
	}
}

// Submit resolves a pending action. An action that is already resolved
// returns its recorded resolution without writing anything. Rule violations
// are resolutions, not errors; an error means the action is still pending
// (precondition failure, exhausted conflict retries, store failure).
func (g *Gateway) Submit(ctx context.Context, tableID, actionID string) (Resolution, error) {
	var res Resolution
	var b *batch
	err := g.store.RunTx(ctx, tableID, func(ctx context.Context, tx store.Tx) error {
		b = g.newBatch(tableID)
		var err error
		res, err = g.submit(ctx, tx, b, actionID)
		return err
	})

	var ae *applyError
	switch {
	case err == nil:
		g.publish(b)
		return res, nil
	case errors.As(err, &ae):
		g.logger.Error("Action failed", "table", tableID, "action", actionID, "error", ae.err)
		return g.recordFailure(ctx, tableID, actionID, ae.err)
	case CodeOf(err) == "" && errors.Is(err, store.ErrNotFound):
		return Resolution{}, precondition(CodeTableMissing, tableID, err)
	default:
		return Resolution{}, fmt.Errorf("submit %s/%s: %w", tableID, actionID, err)
	}
}

func (g *Gateway) submit(ctx context.Context, tx store.Tx, b *batch, actionID string) (res Resolution, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &applyError{err: fmt.Errorf("panic: %v", r)}
		}
	}()

	action, err := tx.Action(ctx, actionID)
	if errors.Is(err, store.ErrNotFound) {
		return res, precondition(CodeActionMissing, b.tableID, err)
	}
	if err != nil {
		return res, err
	}
	if action.Resolved() {
		return resolutionOf(action), nil
	}

	table, err := tx.Table(ctx)
	if err != nil {
		return res, err
	}
	hs, err := optional(tx.Hand(ctx))
	if err != nil {
		return res, err
	}
	seats, err := tx.Seats(ctx)
	if err != nil {
		return res, err
	}

	if reason := validate(table, hs, seats, action); reason != "" {
		return g.reject(ctx, tx, b, action, reason)
	}

	d, err := tx.Deck(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return res, precondition(CodeDeckMissing, b.tableID, err)
	}
	if err != nil {
		return res, err
	}

	result, err := game.Apply(hs, seats, d, action.GameAction())
	if err != nil {
		return res, &applyError{err: err}
	}
	if result.Rejected() {
		return g.reject(ctx, tx, b, action, result.Reason)
	}

	next, err := g.commit(ctx, tx, b, hs, result, d)
	if err != nil {
		return res, err
	}

	action.Status = store.StatusApplied
	action.Version = next.Version
	action.ResolvedAt = b.at
	if err := tx.SaveAction(ctx, action); err != nil {
		return res, err
	}
	b.action(action)

	g.logger.Info("Applied action", "table", b.tableID, "hand", next.HandNo, "seat", action.Seat,
		"action", action.Type, "amount", action.Amount, "version", next.Version, "street", next.Street)
	return resolutionOf(action), nil
}

// validate checks the action against the snapshot before the state machine
// sees it. Order matters: the first failing check names the reason.
func validate(table store.Table, hs *game.HandState, seats game.Seats, a store.Action) game.Reason {
	switch {
	case hs == nil || hs.HandNo != a.HandNo:
		return game.ReasonHandMismatch
	case !table.ValidSeat(a.Seat):
		return game.ReasonBadSeat
	case !seats[a.Seat].Occupied():
		return game.ReasonSeatEmpty
	case a.Actor != "" && a.Actor != seats[a.Seat].Occupant:
		return game.ReasonActorSeatMismatch
	case hs.ToActSeat != a.Seat:
		return game.ReasonNotYourTurn
	}
	return ""
}

func (g *Gateway) reject(ctx context.Context, tx store.Tx, b *batch, a store.Action, reason game.Reason) (Resolution, error) {
	a.Status = store.StatusInvalid
	a.Reason = reason
	a.ResolvedAt = b.at
	if err := tx.SaveAction(ctx, a); err != nil {
		return Resolution{}, err
	}
	b.action(a)

	g.logger.Info("Rejected action", "table", b.tableID, "action", a.ID, "seat", a.Seat, "reason", reason)
	return resolutionOf(a), nil
}

// commit writes the outcome of a transition: the hand one version on, the
// seats and the deck. A hand that reached showdown is settled first.
func (g *Gateway) commit(ctx context.Context, tx store.Tx, b *batch, prev *game.HandState, result game.Result, d *deck.Deck) (*game.HandState, error) {
	next, seats := result.State, result.Seats
	next.Version = prev.Version + 1
	next.UpdatedAt = b.at

	settled := false
	if next.IsComplete() && !next.Settled {
		var err error
		if next, seats, err = g.settle(ctx, tx, b, next, seats, d); err != nil {
			return nil, err
		}
		settled = true
	}

	if err := tx.SaveHand(ctx, next); err != nil {
		return nil, err
	}
	if err := tx.SaveSeats(ctx, seats); err != nil {
		return nil, err
	}
	if d != nil {
		if err := tx.SaveDeck(ctx, d); err != nil {
			return nil, err
		}
	}

	b.hand(EventHandUpdated, next)
	if settled {
		b.hand(EventHandSettled, next)
	}
	return next, nil
}

func (g *Gateway) settle(ctx context.Context, tx store.Tx, b *batch, hs *game.HandState, seats game.Seats, d *deck.Deck) (*game.HandState, game.Seats, error) {
	hs, seats, released, err := SettleHand(ctx, tx, hs, seats, d)
	if err != nil {
		return nil, nil, err
	}
	for _, seat := range released {
		g.logger.Info("Seat released", "table", b.tableID, "seat", seat.Index, "player", seat.Occupant, "cashout", seat.Stack)
		b.seat(seats[seat.Index])
	}

	g.logger.Info("Settled hand", "table", b.tableID, "hand", hs.HandNo, "pot", hs.Pot, "payouts", hs.Payouts)
	return hs, seats, nil
}

// recordFailure resolves an action with the error status in a fresh
// transaction, so a broken hand cannot leave it pending forever
func (g *Gateway) recordFailure(ctx context.Context, tableID, actionID string, cause error) (Resolution, error) {
	var res Resolution
	var b *batch
	err := g.store.RunTx(ctx, tableID, func(ctx context.Context, tx store.Tx) error {
		b = g.newBatch(tableID)
		a, err := tx.Action(ctx, actionID)
		if err != nil {
			return err
		}
		if a.Resolved() {
			res = resolutionOf(a)
			return nil
		}

		a.Status = store.StatusError
		a.Message = cause.Error()
		a.ResolvedAt = b.at
		if err := tx.SaveAction(ctx, a); err != nil {
			return err
		}
		b.action(a)
		res = resolutionOf(a)
		return nil
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("record failure of action %s: %w", actionID, errors.Join(cause, err))
	}
	g.publish(b)
	return res, nil
}

// optional turns ErrNotFound into a nil value
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// cards converts a possibly missing deck to the state machine's interface
// without producing a non-nil interface around a nil pointer
func cards(d *deck.Deck) game.Deck {
	if d == nil {
		return nil
	}
	return d
}
