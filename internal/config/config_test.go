package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlgraph.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Dialect)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, time.Second, cfg.Topology.PollInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlgraph.yaml")
	content := `
database:
  path: /var/lib/graph.db
  busy_timeout: 250ms
topology:
  poll_interval: 2s
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/graph.db", cfg.Database.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.BusyTimeout)
	assert.Equal(t, 2*time.Second, cfg.Topology.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: from-file.db\n"), 0o644))
	t.Setenv("SQLGRAPH_DATABASE_PATH", "from-env.db")
	t.Setenv("SQLGRAPH_DATABASE_MAX_OPEN_CONNS", "9")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
	assert.Equal(t, 9, cfg.Database.MaxOpenConns)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlgraph.yaml")
	content := `
database:
  dialect: oracle
  max_open_conns: 0
log:
  level: loud
  format: xml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(New(), path)
	require.Error(t, err)
	for _, want := range []string{"oracle", "max_open_conns", "loud", "xml"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_PolicyOnlyDialect(t *testing.T) {
	v := New()
	v.Set("database.dialect", "postgres")

	_, err := Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no live driver")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
