package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

type stepFunc func(hs *game.HandState, seats game.Seats, d game.Deck) (game.Result, error)

// ForceAdvanceStreet closes the current street of the table's hand even if
// betting is not finished. Only the table operator may call it.
func (g *Gateway) ForceAdvanceStreet(ctx context.Context, tableID, operator string) (*game.HandState, error) {
	return g.override(ctx, tableID, operator, "advance-street", game.AdvanceStreet)
}

// ForceShowdown ends the betting of the table's hand and settles it. Only
// the table operator may call it.
func (g *Gateway) ForceShowdown(ctx context.Context, tableID, operator string) (*game.HandState, error) {
	return g.override(ctx, tableID, operator, "showdown", func(hs *game.HandState, seats game.Seats, _ game.Deck) (game.Result, error) {
		return game.ForceShowdown(hs, seats)
	})
}

func (g *Gateway) override(ctx context.Context, tableID, operator, name string, step stepFunc) (*game.HandState, error) {
	var out *game.HandState
	var b *batch
	err := g.store.RunTx(ctx, tableID, func(ctx context.Context, tx store.Tx) error {
		b = g.newBatch(tableID)

		table, err := tx.Table(ctx)
		if err != nil {
			return err
		}
		if table.Operator == "" || table.Operator != operator {
			return precondition(CodeAdminOnly, tableID, nil)
		}

		hs, err := tx.Hand(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return precondition(CodeHandMissing, tableID, err)
		}
		if err != nil {
			return err
		}
		if hs.IsComplete() {
			return precondition(CodeHandComplete, tableID, nil)
		}

		seats, err := tx.Seats(ctx)
		if err != nil {
			return err
		}
		d, err := tx.Deck(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return precondition(CodeDeckMissing, tableID, err)
		}
		if err != nil {
			return err
		}

		result, err := step(hs, seats, d)
		if err != nil {
			return &applyError{err: err}
		}
		if result.Rejected() {
			return precondition(Code(result.Reason), tableID, nil)
		}

		next, err := g.commit(ctx, tx, b, hs, result, d)
		if err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, g.wrap(err, tableID, name)
	}

	g.publish(b)
	g.logger.Info("Operator override", "table", tableID, "op", name, "operator", operator,
		"street", out.Street, "version", out.Version)
	return out.Redacted(), nil
}

// wrap classifies errors of operations that do not resolve an action
func (g *Gateway) wrap(err error, tableID, op string) error {
	if CodeOf(err) == "" && errors.Is(err, store.ErrNotFound) {
		return precondition(CodeTableMissing, tableID, err)
	}
	var ae *applyError
	if errors.As(err, &ae) {
		g.logger.Error("Operation failed", "table", tableID, "op", op, "error", ae.err)
		return fmt.Errorf("%s on table %s: %w", op, tableID, ae.err)
	}
	if CodeOf(err) != "" {
		return err
	}
	return fmt.Errorf("%s on table %s: %w", op, tableID, err)
}

// LeaveSeat takes actor out of seat. A seat still holding cards in the
// current hand is folded and marked leaving; its chips go to the bank when
// the hand is settled. Otherwise the chips are banked at once.
func (g *Gateway) LeaveSeat(ctx context.Context, tableID string, seat int, actor string) (game.Seat, error) {
	var out game.Seat
	var b *batch
	err := g.store.RunTx(ctx, tableID, func(ctx context.Context, tx store.Tx) error {
		b = g.newBatch(tableID)

		table, err := tx.Table(ctx)
		if err != nil {
			return err
		}
		if !table.ValidSeat(seat) {
			return precondition(CodeBadSeat, tableID, nil)
		}
		seats, err := tx.Seats(ctx)
		if err != nil {
			return err
		}
		current := seats[seat]
		if !current.Occupied() || (actor != "" && current.Occupant != actor) {
			return precondition(CodeNotSeated, tableID, nil)
		}

		hs, err := optional(tx.Hand(ctx))
		if err != nil {
			return err
		}
		if hs == nil || hs.IsComplete() || !hs.InHand(seat) || hs.Folded[seat] {
			if _, err := release(ctx, tx, seats, seat); err != nil {
				return err
			}
			out = seats[seat]
			b.seat(out)
			g.logger.Info("Seat released", "table", tableID, "seat", seat, "player", current.Occupant, "cashout", current.Stack)
			return tx.SaveSeats(ctx, game.Seats{seat: out})
		}

		d, err := tx.Deck(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return precondition(CodeDeckMissing, tableID, err)
		}
		if err != nil {
			return err
		}
		result, err := game.FoldSeat(hs, seats, d, seat)
		if err != nil {
			return &applyError{err: err}
		}
		if result.Rejected() {
			return &applyError{err: fmt.Errorf("fold leaving seat %d: %s", seat, result.Reason)}
		}

		leaving := result.Seats[seat]
		leaving.Leaving = true
		result.Seats[seat] = leaving
		b.seat(leaving)

		next, err := g.commit(ctx, tx, b, hs, result, d)
		if err != nil {
			return err
		}
		out, err = seatAfter(ctx, tx, seat)
		g.logger.Info("Seat leaving", "table", tableID, "seat", seat, "player", current.Occupant,
			"hand", next.HandNo, "street", next.Street)
		return err
	})
	if err != nil {
		return game.Seat{}, g.wrap(err, tableID, "leave-seat")
	}
	g.publish(b)
	return out, nil
}

func seatAfter(ctx context.Context, tx store.Tx, seat int) (game.Seat, error) {
	seats, err := tx.Seats(ctx)
	if err != nil {
		return game.Seat{}, err
	}
	return seats[seat], nil
}

// Sit places occupant in an empty seat with stack chips. Where the chips
// come from is up to the caller.
func (g *Gateway) Sit(ctx context.Context, tableID string, seat int, occupant string, stack int) (game.Seat, error) {
	if occupant == "" {
		return game.Seat{}, fmt.Errorf("sit at table %s: empty occupant", tableID)
	}
	if stack < 0 {
		return game.Seat{}, fmt.Errorf("sit at table %s: negative stack %d", tableID, stack)
	}

	var out game.Seat
	var b *batch
	err := g.store.RunTx(ctx, tableID, func(ctx context.Context, tx store.Tx) error {
		b = g.newBatch(tableID)

		table, err := tx.Table(ctx)
		if err != nil {
			return err
		}
		if !table.ValidSeat(seat) {
			return precondition(CodeBadSeat, tableID, nil)
		}
		seats, err := tx.Seats(ctx)
		if err != nil {
			return err
		}
		if seats[seat].Occupied() {
			return precondition(CodeSeatTaken, tableID, nil)
		}
		for _, s := range seats {
			if s.Occupant == occupant {
				return precondition(CodeSeatTaken, tableID, fmt.Errorf("%s already at seat %d", occupant, s.Index))
			}
		}

		out = game.Seat{Index: seat, Occupant: occupant, Stack: stack}
		b.seat(out)
		return tx.SaveSeats(ctx, game.Seats{seat: out})
	})
	if err != nil {
		return game.Seat{}, g.wrap(err, tableID, "sit")
	}

	g.publish(b)
	g.logger.Info("Seat taken", "table", tableID, "seat", seat, "player", occupant, "stack", stack)
	return out, nil
}

var _ game.Deck = (*deck.Deck)(nil)
