package main

import (
	"github.com/coder/quartz"

	"github.com/Mappledude/jampoker/cmd/jampoker/shared"
	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/server"
	"github.com/Mappledude/jampoker/internal/worker"
)

// WorkerCmd drains pending actions against a shared store. Feed clients
// of a separate server process do not see its commits.
type WorkerCmd struct {
	Once bool `help:"Run a single tick and exit"`
}

func (c *WorkerCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	if cfg.Store.Driver == server.DriverMemory {
		logger.Warn("The memory store is private to this process; nothing else can enqueue actions")
	}
	ctx := shared.SetupSignalHandler(logger)

	st, err := shared.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	wc, err := cfg.WorkerConfig()
	if err != nil {
		return err
	}
	delay, err := cfg.AutoDealDelay()
	if err != nil {
		return err
	}

	clock := quartz.NewReal()
	gw := gateway.New(st, logger, gateway.WithClock(clock))
	opts := []dealer.Option{dealer.WithClock(clock), dealer.WithAutoDealDelay(delay)}
	if cfg.Server.Seed != 0 {
		opts = append(opts, dealer.WithSeed(cfg.Server.Seed))
	}
	w := worker.New(st, gw, dealer.New(st, logger, opts...), clock, logger, wc)

	if c.Once {
		stats, err := w.Tick(ctx)
		if err != nil {
			return err
		}
		logger.Info("Tick complete",
			"applied", stats.Applied,
			"rejected", stats.Rejected,
			"failed", stats.Failed,
			"errors", stats.Errors,
			"started", stats.Started)
		return nil
	}
	return w.Run(ctx)
}
