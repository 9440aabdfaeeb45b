package store

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"time"
)

// RetryPolicy bounds how often a conflicting transaction is rerun
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry is used by the backends unless configured otherwise
var DefaultRetry = RetryPolicy{Attempts: 8, Backoff: 2 * time.Millisecond}

// Run calls fn until it returns something other than ErrConflict, the
// attempts are used up or ctx is done. Waits grow linearly with jitter.
func (p RetryPolicy) Run(ctx context.Context, fn func() error) error {
	attempts := max(1, p.Attempts)

	var err error
	for i := range attempts {
		if err = fn(); !errors.Is(err, ErrConflict) {
			return err
		}
		if i == attempts-1 {
			break
		}

		wait := p.Backoff * time.Duration(i+1)
		if wait > 0 {
			wait += rand.N(wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
