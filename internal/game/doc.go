// Package game implements the betting state machine for a single poker hand.
//
// Everything in this package is pure: functions take a HandState, a Seats
// snapshot and optionally a Deck, and return new values without touching
// their inputs. Persistence, retries and concurrency live in the gateway and
// store packages.
//
// # Basic Usage
//
// Apply one action and inspect the result:
//
//	res, err := game.Apply(hs, seats, d, game.Action{
//	    HandNo: hs.HandNo,
//	    Seat:   1,
//	    Move:   game.Raise{Amount: 125},
//	})
//	if err != nil {
//	    // deck exhausted or corrupted state
//	}
//	if res.Rejected() {
//	    fmt.Println(res.Reason) // e.g. "raise-below-min"
//	}
//
// # Amounts
//
// All chip values are integer cents. A Bet or Raise amount is the number of
// chips the seat adds to its commitment on the current street, so a raise
// of 125 from a seat that already posted 25 makes the bet to match 150.
//
// # Street Closure
//
// A street closes once every seat that can still act has acted since the
// last full raise and matches the bet, or when at most one seat can act and
// it is matched. Posting a blind is not acting, which keeps the big blind's
// option. When nobody can act the remaining streets are dealt out straight
// to showdown.
//
// # Operator Overrides
//
// AdvanceStreet, ForceShowdown and FoldSeat apply the same street-closing
// rules without the normal turn checks. Settle pays out the pot once the
// hand is at showdown.
package game
