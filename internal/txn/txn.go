// Package txn manages the lifecycle of graph transactions.
//
// A Tx lazily acquires a connection on the first ReadWrite and keeps it until
// Commit or Rollback. Components that hold per-transaction state (the topology
// overlay) bind a Resource to the Tx and get callbacks around the commit.
package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/sqlgraph/internal/model"
)

// Executor is the statement surface of an active transaction.
// *sql.Tx satisfies it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Resource is per-transaction state that participates in the commit.
//
// BeforeCommit runs inside the transaction and may write through tx.Conn().
// Exactly one of AfterCommit or AfterRollback is called once the transaction
// has ended.
type Resource interface {
	BeforeCommit(ctx context.Context, tx *Tx) error
	AfterCommit()
	AfterRollback()
}

// ErrNotActive is returned by Conn users when no transaction is open.
var ErrNotActive = errors.New("transaction is not active")

// Manager hands out transaction handles over a shared database.
type Manager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewManager creates a Manager. A nil logger uses slog.Default().
func NewManager(db *sql.DB, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, logger: logger}
}

// DB returns the underlying database.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Begin returns a new, not yet started, transaction handle.
func (m *Manager) Begin() *Tx {
	return &Tx{m: m}
}

// Tx is one logical caller's transaction. It is not safe for concurrent use.
// After Commit or Rollback the handle can be started again with ReadWrite.
type Tx struct {
	m         *Manager
	tx        *sql.Tx
	resources map[string]Resource
	order     []string
}

// ReadWrite starts the transaction if it is not already active.
func (t *Tx) ReadWrite(ctx context.Context) error {
	if t.tx != nil {
		return nil
	}
	tx, err := t.m.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WrapStoreError("begin transaction", err)
	}
	t.tx = tx
	return nil
}

// Active reports whether a transaction is open.
func (t *Tx) Active() bool {
	return t.tx != nil
}

// Conn returns the executor of the open transaction, or nil.
func (t *Tx) Conn() Executor {
	if t.tx == nil {
		return nil
	}
	return t.tx
}

// Bind attaches a resource under key for the rest of this transaction.
// Binding the same key twice keeps the first resource.
func (t *Tx) Bind(key string, r Resource) {
	if t.resources == nil {
		t.resources = make(map[string]Resource)
	}
	if _, ok := t.resources[key]; ok {
		return
	}
	t.resources[key] = r
	t.order = append(t.order, key)
}

// Resource returns the resource bound under key, or nil.
func (t *Tx) Resource(key string) Resource {
	return t.resources[key]
}

// Commit runs before-commit hooks, commits, then runs after-commit hooks.
// When a hook or the commit itself fails, the transaction is rolled back and
// the after-rollback hooks run instead. Committing an inactive Tx is a no-op.
func (t *Tx) Commit(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}

	for _, key := range t.order {
		if err := t.resources[key].BeforeCommit(ctx, t); err != nil {
			t.abort()
			return model.WrapStoreError("commit", fmt.Errorf("%s: %w", key, err))
		}
	}

	if err := t.tx.Commit(); err != nil {
		t.abort()
		return model.WrapStoreError("commit", err)
	}

	resources := t.drain()
	for _, r := range resources {
		r.AfterCommit()
	}
	return nil
}

// Rollback rolls back the open transaction and runs after-rollback hooks.
// Rolling back an inactive Tx is a no-op.
func (t *Tx) Rollback() error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback()
	resources := t.drain()
	for _, r := range resources {
		r.AfterRollback()
	}
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return model.WrapStoreError("rollback", err)
	}
	return nil
}

// abort rolls back after a failed commit attempt.
func (t *Tx) abort() {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		t.m.logger.Error("rollback after failed commit", "error", err)
	}
	for _, r := range t.drain() {
		r.AfterRollback()
	}
}

// drain resets the handle and returns the bound resources in bind order.
func (t *Tx) drain() []Resource {
	out := make([]Resource, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.resources[key])
	}
	t.tx = nil
	t.resources = nil
	t.order = nil
	return out
}
