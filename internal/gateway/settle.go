package gateway

import (
	"context"
	"fmt"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

// SettleHand pays out a hand that reached showdown and releases every seat
// marked leaving, moving its stack to the occupant's bank. It returns the
// settled hand, the seats after payout and the seats as they were before
// release. The caller saves the hand and seats in the same transaction.
func SettleHand(ctx context.Context, tx store.Tx, hs *game.HandState, seats game.Seats, d *deck.Deck) (*game.HandState, game.Seats, []game.Seat, error) {
	result, err := game.Settle(hs, seats, cards(d))
	if err != nil {
		return nil, nil, nil, &applyError{err: err}
	}
	if result.Rejected() {
		return nil, nil, nil, &applyError{err: fmt.Errorf("settle hand %d: %s", hs.HandNo, result.Reason)}
	}
	hs, seats = result.State, result.Seats

	var released []game.Seat
	for _, seat := range seats.Sorted() {
		if !seat.Leaving || !seat.Occupied() {
			continue
		}
		before, err := release(ctx, tx, seats, seat.Index)
		if err != nil {
			return nil, nil, nil, err
		}
		released = append(released, before)
	}
	return hs, seats, released, nil
}

// release banks a seat's stack for its occupant and empties the seat
func release(ctx context.Context, tx store.Tx, seats game.Seats, idx int) (game.Seat, error) {
	seat := seats[idx]
	if seat.Stack > 0 {
		if err := tx.Credit(ctx, seat.Occupant, seat.Stack); err != nil {
			return seat, err
		}
	}
	seats[idx] = game.Seat{Index: idx}
	return seat, nil
}
