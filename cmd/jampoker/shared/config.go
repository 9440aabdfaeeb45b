package shared

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/Mappledude/jampoker/internal/server"
)

// EnvPrefix is the prefix of every environment variable the CLI reads
const EnvPrefix = "JAMPOKER_"

// LoadEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables that are already set
// win over the file.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Overrides are settings given on the command line or through JAMPOKER_*
// variables. Empty values leave the file's settings alone.
type Overrides struct {
	LogLevel    string
	StoreDriver string
	StoreDSN    string
}

// LoadConfig reads the HCL file at path, applies o and validates the result
func LoadConfig(path string, o Overrides) (*server.Config, error) {
	cfg, err := server.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	o.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Apply copies every non-empty override into cfg
func (o Overrides) Apply(cfg *server.Config) {
	if o.LogLevel != "" {
		cfg.Server.LogLevel = o.LogLevel
	}
	if o.StoreDriver != "" {
		cfg.Store.Driver = o.StoreDriver
	}
	if o.StoreDSN != "" {
		cfg.Store.DSN = o.StoreDSN
	}
}
