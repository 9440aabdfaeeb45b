package main

import (
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/Mappledude/jampoker/cmd/jampoker/shared"
	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/server"
	"github.com/Mappledude/jampoker/internal/worker"
)

// ServerCmd runs the HTTP API, the websocket feed and, unless disabled,
// the worker in one process
type ServerCmd struct {
	Addr     string `env:"JAMPOKER_ADDR" help:"Listen address (overrides config)"`
	Seed     *int64 `env:"JAMPOKER_SEED" help:"Deterministic shuffle seed"`
	NoWorker bool   `help:"Do not drain pending actions in this process"`
}

func (c *ServerCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	ctx := shared.SetupSignalHandler(logger)

	st, err := shared.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	clock := quartz.NewReal()
	created, err := cfg.EnsureTables(ctx, st, clock.Now().UTC())
	if err != nil {
		return err
	}
	for _, id := range created {
		logger.Info("Created table", "table", id)
	}

	delay, err := cfg.AutoDealDelay()
	if err != nil {
		return err
	}

	hub := server.NewHub(logger)
	pub := gateway.Fanout{hub, shared.EventLogger(logger)}
	gw := gateway.New(st, logger, gateway.WithPublisher(pub), gateway.WithClock(clock))

	opts := []dealer.Option{dealer.WithPublisher(pub), dealer.WithClock(clock), dealer.WithAutoDealDelay(delay)}
	switch {
	case c.Seed != nil:
		logger.Info("Using deterministic seed", "seed", *c.Seed)
		opts = append(opts, dealer.WithSeed(*c.Seed))
	case cfg.Server.Seed != 0:
		logger.Info("Using deterministic seed", "seed", cfg.Server.Seed)
		opts = append(opts, dealer.WithSeed(cfg.Server.Seed))
	}
	dm := dealer.New(st, logger, opts...)

	srv := server.New(st, gw, dm, hub, logger, server.WithClock(clock))

	addr := cfg.GetServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger.Info("Starting jampoker",
		"addr", addr,
		"store", cfg.Store.Driver,
		"tables", len(cfg.Tables),
		"worker", cfg.Worker.Running() && !c.NoWorker,
		"autoDealDelay", delay)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.ListenAndServe(ctx, addr) })

	if cfg.Worker.Running() && !c.NoWorker {
		wc, err := cfg.WorkerConfig()
		if err != nil {
			return err
		}
		w := worker.New(st, gw, dm, clock, logger, wc)
		eg.Go(func() error { return w.Run(ctx) })
	}

	return eg.Wait()
}
