package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/topology"
)

// Schema version tracking:
// 0 - Registries and topology metadata tables
// 1 - Added label index on VERTICES and EDGES
const currentSchemaVersion = 1

// Options configures Open.
type Options struct {
	// MaxOpenConns bounds the connection pool. Defaults to 4.
	MaxOpenConns int

	// BusyTimeout is how long a connection waits for the write lock.
	// Defaults to 5s.
	BusyTimeout time.Duration

	// Logger is shared with the topology. Defaults to slog.Default().
	Logger *slog.Logger

	// IDGenerator supplies the topology instance id.
	IDGenerator topology.IDGenerator
}

// Store is the element store over one SQLite database.
type Store struct {
	db      *sql.DB
	dialect dialect.Dialect
	topo    *topology.Topology
	logger  *slog.Logger
}

// Open creates or opens a SQLite database at the given path, bootstraps the
// registries and metadata tables, and loads the topology.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - a busy timeout for lock contention
//   - Foreign key enforcement
//   - BEGIN IMMEDIATE for every transaction
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dsn(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns)

	d := dialect.SQLite{}
	if err := applySchema(ctx, db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	topo := topology.New(db, topology.Options{
		Dialect:     d,
		Logger:      opts.Logger,
		IDGenerator: opts.IDGenerator,
	})
	if err := topo.Load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load topology: %w", err)
	}

	return &Store{db: db, dialect: d, topo: topo, logger: opts.Logger}, nil
}

// dsn builds the driver connection string. Pragmas are set per connection
// through DSN parameters so every pooled connection gets them.
func dsn(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_busy_timeout", fmt.Sprint(busyTimeout.Milliseconds()))
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	return "file:" + path + "?" + params.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Topology returns the topology cache of this database.
func (s *Store) Topology() *topology.Topology {
	return s.topo
}

// Dialect returns the SQL dialect of this database.
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// applySchema creates the registries and metadata tables and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB, d dialect.Dialect) error {
	if err := topology.Bootstrap(ctx, db, d); err != nil {
		return err
	}
	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 indexes the registries by label for per-label counts.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS "IDX_VERTICES_LABEL" ON "VERTICES" ("VERTEX_SCHEMA", "VERTEX_TABLE")`,
		`CREATE INDEX IF NOT EXISTS "IDX_EDGES_LABEL" ON "EDGES" ("EDGE_SCHEMA", "EDGE_TABLE")`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
