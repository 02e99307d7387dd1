package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDSN is the connection string used for test databases: immediate
// write transactions, a generous busy timeout, foreign keys and WAL.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=10000&_foreign_keys=on&_journal_mode=WAL", path)
}

// OpenSQLite opens a fresh database file named name in a temporary
// directory. It is closed when the test ends.
func OpenSQLite(tb testing.TB, name string) *sql.DB {
	tb.Helper()
	db, err := sql.Open("sqlite3", SQLiteDSN(filepath.Join(tb.TempDir(), name)))
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(4)
	if err := db.Ping(); err != nil {
		db.Close()
		tb.Fatalf("ping sqlite: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}
