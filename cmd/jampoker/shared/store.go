package shared

import (
	"context"
	"fmt"

	"github.com/Mappledude/jampoker/internal/server"
	"github.com/Mappledude/jampoker/internal/store"
	"github.com/Mappledude/jampoker/internal/store/postgres"
	"github.com/Mappledude/jampoker/internal/store/sqlite"
)

// OpenStore opens the configured backend. The schema is created when it
// does not exist yet.
func OpenStore(ctx context.Context, cfg server.StoreSettings) (store.Store, error) {
	switch cfg.Driver {
	case server.DriverMemory, "":
		return store.NewMemory(), nil
	case server.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case server.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
