package dealer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mappledude/jampoker/internal/store"
)

// AutoDeal starts the next hand once the previous one has been settled for
// at least the auto-deal delay. A table that never had a hand is dealt as
// soon as two seats can play.
func (m *Manager) AutoDeal(ctx context.Context, tableID string) (Outcome, error) {
	seats, err := m.store.Seats(ctx, tableID)
	if err != nil {
		return Outcome{}, fmt.Errorf("auto-deal %s: %w", tableID, err)
	}
	if len(seats.Eligible()) < 2 {
		return Outcome{Status: StatusRejected, Reason: ReasonNotEnoughPlayers}, nil
	}

	hs, err := m.store.Hand(ctx, tableID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return Outcome{}, fmt.Errorf("auto-deal %s: %w", tableID, err)
	case !hs.IsComplete():
		return Outcome{Status: StatusOK, Hand: hs.Redacted()}, nil
	default:
		if wait := m.delay - m.clock.Since(hs.UpdatedAt); wait > 0 {
			return Outcome{Status: StatusWaiting, Remaining: wait}, nil
		}
	}

	m.logger.Debug("Auto-deal", "table", tableID)
	return m.StartHand(ctx, tableID)
}
