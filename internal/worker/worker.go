// Package worker drains the queue of pending actions. Every tick it walks
// all tables, submits each table's pending actions oldest first and, when
// enabled, deals the next hand once the countdown after the last one ends.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/store"
)

// Config controls the drain loop
type Config struct {
	Interval      time.Duration
	BatchSize     int
	SubmitTimeout time.Duration
	// Concurrency bounds how many tables are drained at once
	Concurrency int
	AutoDeal    bool
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		Interval:      500 * time.Millisecond,
		BatchSize:     32,
		SubmitTimeout: 5 * time.Second,
		Concurrency:   8,
		AutoDeal:      true,
	}
}

// Stats counts what one tick did
type Stats struct {
	Applied  int
	Rejected int
	Failed   int
	Errors   int
	Started  int
}

func (s *Stats) add(o Stats) {
	s.Applied += o.Applied
	s.Rejected += o.Rejected
	s.Failed += o.Failed
	s.Errors += o.Errors
	s.Started += o.Started
}

// Worker resolves queued actions through the gateway
type Worker struct {
	store  store.Store
	gw     *gateway.Gateway
	dealer *dealer.Manager
	clock  quartz.Clock
	logger *log.Logger
	cfg    Config
}

// New creates a worker. dm may be nil when auto-deal is disabled.
func New(st store.Store, gw *gateway.Gateway, dm *dealer.Manager, clock quartz.Clock, logger *log.Logger, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = def.SubmitTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if dm == nil {
		cfg.AutoDeal = false
	}
	return &Worker{
		store:  st,
		gw:     gw,
		dealer: dm,
		clock:  clock,
		logger: logger.WithPrefix("worker"),
		cfg:    cfg,
	}
}

// Run ticks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started", "interval", w.cfg.Interval, "batch", w.cfg.BatchSize, "autodeal", w.cfg.AutoDeal)
	ticker := w.clock.NewTicker(w.cfg.Interval, "worker")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("Tick failed", "error", err)
			}
		}
	}
}

// Tick drains every table once. Failures on one table are logged and
// counted; they do not stop the others.
func (w *Worker) Tick(ctx context.Context) (Stats, error) {
	tables, err := w.store.Tables(ctx)
	if err != nil {
		return Stats{}, err
	}

	var mu sync.Mutex
	var total Stats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, t := range tables {
		g.Go(func() error {
			s := w.drain(gctx, t.ID)
			mu.Lock()
			total.add(s)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	if total != (Stats{}) {
		w.logger.Debug("Tick", "applied", total.Applied, "rejected", total.Rejected,
			"failed", total.Failed, "errors", total.Errors, "started", total.Started)
	}
	return total, ctx.Err()
}

func (w *Worker) drain(ctx context.Context, tableID string) Stats {
	var s Stats
	logger := w.logger.With("table", tableID)

	pending, err := w.store.Pending(ctx, tableID, w.cfg.BatchSize)
	if err != nil {
		logger.Error("List pending actions", "error", err)
		s.Errors++
		return s
	}

	for _, a := range pending {
		if ctx.Err() != nil {
			return s
		}
		sctx, cancel := context.WithTimeout(ctx, w.cfg.SubmitTimeout)
		res, err := w.gw.Submit(sctx, tableID, a.ID)
		cancel()
		if err != nil {
			// The action stays pending and is retried next tick.
			logger.Warn("Submit failed", "action", a.ID, "error", err)
			s.Errors++
			continue
		}

		switch res.Status {
		case store.StatusApplied:
			s.Applied++
		case store.StatusInvalid:
			s.Rejected++
		case store.StatusError:
			s.Failed++
		}
	}

	if w.cfg.AutoDeal {
		out, err := w.dealer.AutoDeal(ctx, tableID)
		if err != nil {
			logger.Error("Auto-deal", "error", err)
			s.Errors++
		} else if out.Started {
			s.Started++
		}
	}
	return s
}
