package txn

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/testutil"
)

type recorder struct {
	events    []string
	beforeErr error
	write     string
}

func (r *recorder) BeforeCommit(ctx context.Context, tx *Tx) error {
	r.events = append(r.events, "before")
	if r.write != "" {
		if _, err := tx.Conn().ExecContext(ctx, r.write); err != nil {
			return err
		}
	}
	return r.beforeErr
}

func (r *recorder) AfterCommit()   { r.events = append(r.events, "commit") }
func (r *recorder) AfterRollback() { r.events = append(r.events, "rollback") }

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db := testutil.OpenSQLite(t, "txn.db")
	_, err := db.Exec(`CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestReadWriteIsLazyAndIdempotent(t *testing.T) {
	db := setupDB(t)
	tx := NewManager(db, nil).Begin()
	ctx := context.Background()

	assert.False(t, tx.Active())
	assert.Nil(t, tx.Conn())

	require.NoError(t, tx.ReadWrite(ctx))
	first := tx.Conn()
	require.NoError(t, tx.ReadWrite(ctx))
	assert.Same(t, first, tx.Conn())
	assert.True(t, tx.Active())

	require.NoError(t, tx.Rollback())
	assert.False(t, tx.Active())
}

func TestCommitRunsHooksInOrder(t *testing.T) {
	db := setupDB(t)
	tx := NewManager(db, nil).Begin()
	ctx := context.Background()

	require.NoError(t, tx.ReadWrite(ctx))
	_, err := tx.Conn().ExecContext(ctx, `INSERT INTO t VALUES ('a')`)
	require.NoError(t, err)

	r := &recorder{write: `INSERT INTO t VALUES ('hook')`}
	tx.Bind("r", r)
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, []string{"before", "commit"}, r.events)
	assert.Equal(t, 2, count(t, db))
	assert.Nil(t, tx.Resource("r"), "resources are drained at commit")
}

func TestRollbackDiscardsWritesAndRunsHooks(t *testing.T) {
	db := setupDB(t)
	tx := NewManager(db, nil).Begin()
	ctx := context.Background()

	require.NoError(t, tx.ReadWrite(ctx))
	_, err := tx.Conn().ExecContext(ctx, `INSERT INTO t VALUES ('a')`)
	require.NoError(t, err)

	r := &recorder{}
	tx.Bind("r", r)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, []string{"rollback"}, r.events)
	assert.Equal(t, 0, count(t, db))
}

func TestFailingBeforeCommitRollsBack(t *testing.T) {
	db := setupDB(t)
	tx := NewManager(db, nil).Begin()
	ctx := context.Background()

	require.NoError(t, tx.ReadWrite(ctx))
	_, err := tx.Conn().ExecContext(ctx, `INSERT INTO t VALUES ('a')`)
	require.NoError(t, err)

	r := &recorder{beforeErr: errors.New("boom")}
	tx.Bind("r", r)
	err = tx.Commit(ctx)

	require.Error(t, err)
	assert.True(t, model.IsStore(err))
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"before", "rollback"}, r.events)
	assert.False(t, tx.Active())
	assert.Equal(t, 0, count(t, db))
}

func TestBindKeepsFirstResource(t *testing.T) {
	tx := NewManager(setupDB(t), nil).Begin()
	a, b := &recorder{}, &recorder{}
	tx.Bind("k", a)
	tx.Bind("k", b)
	assert.Same(t, a, tx.Resource("k"))
}

func TestInactiveCommitAndRollbackAreNoOps(t *testing.T) {
	tx := NewManager(setupDB(t), nil).Begin()
	assert.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, tx.Rollback())
}

func TestHandleIsReusable(t *testing.T) {
	db := setupDB(t)
	tx := NewManager(db, nil).Begin()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, tx.ReadWrite(ctx))
		_, err := tx.Conn().ExecContext(ctx, `INSERT INTO t VALUES ('x')`)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	}
	assert.Equal(t, 2, count(t, db))
}
