package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/sqlgraph/internal/topology"
	"github.com/roach88/sqlgraph/internal/txn"
)

// createTestStore opens a store on a fresh database file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, filepath.Join(t.TempDir(), "test.db"), "instance-test")
}

// openTestStore opens a store on path with a fixed instance id.
func openTestStore(t *testing.T, path, instanceID string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, Options{
		IDGenerator: topology.NewFixedGenerator(instanceID),
	})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// begin returns a fresh transaction handle that is rolled back at cleanup.
func begin(t *testing.T, s *Store) *txn.Tx {
	t.Helper()
	tx := txn.NewManager(s.DB(), nil).Begin()
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

// commit commits tx or fails the test.
func commit(t *testing.T, tx *txn.Tx) {
	t.Helper()
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}
