package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/Mappledude/jampoker/cmd/jampoker/shared"
	"github.com/Mappledude/jampoker/internal/server"
)

// version is set by ldflags during build
var version = "dev"

// Globals are accepted by every command
type Globals struct {
	Config      string `short:"c" default:"jampoker.hcl" env:"JAMPOKER_CONFIG" help:"Path to HCL configuration file"`
	LogLevel    string `short:"l" env:"JAMPOKER_LOG_LEVEL" help:"Log level (overrides config)"`
	StoreDriver string `name:"store" env:"JAMPOKER_STORE_DRIVER" help:"Store driver: memory, sqlite or postgres (overrides config)"`
	StoreDSN    string `name:"dsn" env:"JAMPOKER_STORE_DSN" help:"Store DSN or database path (overrides config)"`
}

type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Serve the table API and event feed"`
	Worker  WorkerCmd        `cmd:"" help:"Drain pending actions without serving HTTP"`
	Migrate MigrateCmd       `cmd:"" help:"Create the store schema"`
	Table   TableCmd         `cmd:"" help:"Manage tables"`
	Hand    HandCmd          `cmd:"" help:"Inspect hands"`
}

// load reads the configuration and builds the root logger
func (g *Globals) load() (*server.Config, *log.Logger, error) {
	cfg, err := shared.LoadConfig(g.Config, shared.Overrides{
		LogLevel:    g.LogLevel,
		StoreDriver: g.StoreDriver,
		StoreDSN:    g.StoreDSN,
	})
	if err != nil {
		return nil, nil, err
	}
	logger, err := shared.SetupLogger(cfg.Server.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := shared.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("jampoker"),
		kong.Description("Transactional poker hand server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
