package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
	"github.com/Mappledude/jampoker/internal/worker"
)

// Config represents the complete jampoker configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Store  StoreSettings  `hcl:"store,block"`
	Worker WorkerSettings `hcl:"worker,block"`
	Tables []TableConfig  `hcl:"table,block"`
}

// fileConfig mirrors Config with every singleton block optional
type fileConfig struct {
	Server *ServerSettings `hcl:"server,block"`
	Store  *StoreSettings  `hcl:"store,block"`
	Worker *WorkerSettings `hcl:"worker,block"`
	Tables []TableConfig   `hcl:"table,block"`
}

// ServerSettings contains HTTP listener configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	// AutoDealDelay is how long a finished hand stays on the table
	AutoDealDelay string `hcl:"auto_deal_delay,optional"`
	Seed          int64  `hcl:"seed,optional"`
}

// StoreSettings selects the persistence backend
type StoreSettings struct {
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn,optional"`
}

// WorkerSettings configures the pending action drainer
type WorkerSettings struct {
	Enabled       *bool  `hcl:"enabled,optional"`
	Interval      string `hcl:"interval,optional"`
	BatchSize     int    `hcl:"batch_size,optional"`
	SubmitTimeout string `hcl:"submit_timeout,optional"`
	Concurrency   int    `hcl:"concurrency,optional"`
	AutoDeal      *bool  `hcl:"auto_deal,optional"`
}

// Running reports whether the server drains pending actions itself
func (w WorkerSettings) Running() bool {
	return w.Enabled == nil || *w.Enabled
}

func (w WorkerSettings) autoDeal() bool {
	return w.AutoDeal == nil || *w.AutoDeal
}

// TableConfig defines a table created at startup
type TableConfig struct {
	ID         string `hcl:"id,label"`
	Variant    string `hcl:"variant,optional"`
	SmallBlind int    `hcl:"small_blind"`
	BigBlind   int    `hcl:"big_blind"`
	MaxSeats   int    `hcl:"max_seats,optional"`
	Operator   string `hcl:"operator,optional"`
}

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	wc := worker.DefaultConfig()
	return &Config{
		Server: ServerSettings{
			Address:       "localhost",
			Port:          8080,
			LogLevel:      "info",
			AutoDealDelay: dealer.DefaultAutoDealDelay.String(),
		},
		Store: StoreSettings{
			Driver: DriverMemory,
		},
		Worker: WorkerSettings{
			Interval:      wc.Interval.String(),
			BatchSize:     wc.BatchSize,
			SubmitTimeout: wc.SubmitTimeout.String(),
			Concurrency:   wc.Concurrency,
		},
		Tables: []TableConfig{
			{
				ID:         "main",
				Variant:    string(game.Holdem),
				SmallBlind: 25,
				BigBlind:   50,
				MaxSeats:   6,
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// DefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config := Config{Tables: fc.Tables}
	if fc.Server != nil {
		config.Server = *fc.Server
	}
	if fc.Store != nil {
		config.Store = *fc.Store
	}
	if fc.Worker != nil {
		config.Worker = *fc.Worker
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = def.Server.LogLevel
	}
	if c.Server.AutoDealDelay == "" {
		c.Server.AutoDealDelay = def.Server.AutoDealDelay
	}

	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}

	if c.Worker.Interval == "" {
		c.Worker.Interval = def.Worker.Interval
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = def.Worker.BatchSize
	}
	if c.Worker.SubmitTimeout == "" {
		c.Worker.SubmitTimeout = def.Worker.SubmitTimeout
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = def.Worker.Concurrency
	}

	for i := range c.Tables {
		if c.Tables[i].Variant == "" {
			c.Tables[i].Variant = string(game.Holdem)
		}
		if c.Tables[i].MaxSeats == 0 {
			c.Tables[i].MaxSeats = 6
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := c.AutoDealDelay(); err != nil {
		return err
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store %s: dsn is required", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if _, err := c.WorkerConfig(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Tables))
	for _, table := range c.Tables {
		if table.ID == "" {
			return fmt.Errorf("table id must not be empty")
		}
		if seen[table.ID] {
			return fmt.Errorf("table %s: defined twice", table.ID)
		}
		seen[table.ID] = true

		if _, err := game.ParseVariant(table.Variant); err != nil {
			return fmt.Errorf("table %s: %w", table.ID, err)
		}
		if table.SmallBlind <= 0 {
			return fmt.Errorf("table %s: small blind must be positive", table.ID)
		}
		if table.BigBlind <= table.SmallBlind {
			return fmt.Errorf("table %s: big blind must be greater than small blind", table.ID)
		}
		if table.MaxSeats < 2 || table.MaxSeats > 10 {
			return fmt.Errorf("table %s: max seats must be between 2 and 10", table.ID)
		}
	}

	return nil
}

// GetServerAddress returns the full listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// AutoDealDelay parses the configured delay between hands
func (c *Config) AutoDealDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.AutoDealDelay)
	if err != nil {
		return 0, fmt.Errorf("auto_deal_delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("auto_deal_delay must not be negative")
	}
	return d, nil
}

// WorkerConfig converts the worker block into a worker.Config
func (c *Config) WorkerConfig() (worker.Config, error) {
	interval, err := time.ParseDuration(c.Worker.Interval)
	if err != nil {
		return worker.Config{}, fmt.Errorf("worker interval: %w", err)
	}
	timeout, err := time.ParseDuration(c.Worker.SubmitTimeout)
	if err != nil {
		return worker.Config{}, fmt.Errorf("worker submit_timeout: %w", err)
	}
	if interval <= 0 || timeout <= 0 {
		return worker.Config{}, fmt.Errorf("worker durations must be positive")
	}
	if c.Worker.BatchSize < 1 || c.Worker.Concurrency < 1 {
		return worker.Config{}, fmt.Errorf("worker batch_size and concurrency must be positive")
	}
	return worker.Config{
		Interval:      interval,
		BatchSize:     c.Worker.BatchSize,
		SubmitTimeout: timeout,
		Concurrency:   c.Worker.Concurrency,
		AutoDeal:      c.Worker.autoDeal(),
	}, nil
}

// Table converts a table block into its stored form
func (t TableConfig) Table(now time.Time) store.Table {
	return store.Table{
		ID:         t.ID,
		Variant:    game.Variant(t.Variant),
		SmallBlind: t.SmallBlind,
		BigBlind:   t.BigBlind,
		MaxSeats:   t.MaxSeats,
		Operator:   t.Operator,
		DealerSeat: game.NoSeat,
		CreatedAt:  now,
	}
}

// EnsureTables creates every configured table that does not exist yet and
// returns the ids that were created
func (c *Config) EnsureTables(ctx context.Context, st store.Store, now time.Time) ([]string, error) {
	var created []string
	for _, tc := range c.Tables {
		err := st.CreateTable(ctx, tc.Table(now))
		switch {
		case err == nil:
			created = append(created, tc.ID)
		case errors.Is(err, store.ErrExists):
		default:
			return created, fmt.Errorf("create table %s: %w", tc.ID, err)
		}
	}
	return created, nil
}
