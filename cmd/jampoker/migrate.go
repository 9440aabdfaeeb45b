package main

import (
	"context"

	"github.com/Mappledude/jampoker/cmd/jampoker/shared"
)

// MigrateCmd creates the schema of the configured store
type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	st, err := shared.OpenStore(context.Background(), cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("Schema ready", "store", cfg.Store.Driver)
	return nil
}
