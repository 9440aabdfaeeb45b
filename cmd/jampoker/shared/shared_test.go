package shared

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/server"
	"github.com/Mappledude/jampoker/internal/store"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "table", "t1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "t1")

	_, err = NewLogger(&buf, "loud")
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JAMPOKER_TEST_FROM_FILE=file\nJAMPOKER_TEST_PRESET=file\n"), 0o600))
	t.Setenv("JAMPOKER_TEST_PRESET", "process")
	t.Setenv("JAMPOKER_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("JAMPOKER_TEST_FROM_FILE"))

	require.NoError(t, LoadEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "file", os.Getenv("JAMPOKER_TEST_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("JAMPOKER_TEST_PRESET"))
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jampoker.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  log_level = "debug"
}
store {
  driver = "postgres"
  dsn    = "postgres://file"
}
table "main" {
  small_blind = 25
  big_blind   = 50
}
`), 0o600))

	cfg, err := LoadConfig(path, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "postgres://file", cfg.Store.DSN)

	cfg, err = LoadConfig(path, Overrides{LogLevel: "error", StoreDriver: "sqlite", StoreDSN: "local.db"})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Server.LogLevel)
	assert.Equal(t, server.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "local.db", cfg.Store.DSN)

	_, err = LoadConfig(path, Overrides{StoreDriver: "mongo"})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := OpenStore(ctx, server.StoreSettings{Driver: server.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)
	require.NoError(t, st.Close())

	st, err = OpenStore(ctx, server.StoreSettings{Driver: server.DriverSQLite, DSN: filepath.Join(t.TempDir(), "j.db")})
	require.NoError(t, err)
	tables, err := st.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
	require.NoError(t, st.Close())

	_, err = OpenStore(ctx, server.StoreSettings{Driver: "mongo"})
	assert.Error(t, err)
}

func TestEventLoggerInFanout(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug")
	require.NoError(t, err)

	rec := &gateway.Recorder{}
	pub := gateway.Fanout{rec, EventLogger(logger)}

	pub.Publish(gateway.Event{
		Kind:    gateway.EventActionResolved,
		TableID: "t1",
		Action:  &store.Action{ID: "a1", Status: store.StatusInvalid, Reason: game.ReasonNotYourTurn},
	})
	pub.Publish(gateway.Event{
		Kind:    gateway.EventHandUpdated,
		TableID: "t1",
		Hand:    &game.HandState{HandNo: 3, Street: game.Turn, Version: 9},
	})

	assert.Equal(t, []gateway.EventKind{gateway.EventActionResolved, gateway.EventHandUpdated}, rec.Kinds())
	out := buf.String()
	assert.Contains(t, out, "action.resolved")
	assert.Contains(t, out, "not-your-turn")
	assert.Contains(t, out, "hand.updated")
	assert.Contains(t, out, "turn")

	buf.Reset()
	quiet, err := NewLogger(&buf, "info")
	require.NoError(t, err)
	EventLogger(quiet).Publish(gateway.Event{Kind: gateway.EventSeatChanged, TableID: "t1", Seat: &game.Seat{Index: 2}})
	assert.Empty(t, buf.String())
}
