package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS directories (id TEXT PRIMARY KEY, path TEXT)`)
	require.NoError(t, err)
	return db
}

func countDirectories(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM directories`).Scan(&n))
	return n
}

func insertDirectory(ctx context.Context, tx DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO directories(id, path) VALUES (?, ?)`, id, "docs")
	return err
}

func TestWithTx_Commits(t *testing.T) {
	db := openSQLite(t)

	err := WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		return insertDirectory(ctx, tx, "d1")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countDirectories(t, db))
}

func TestWithTx_RollsBackAndKeepsError(t *testing.T) {
	db := openSQLite(t)
	errNotEmpty := errors.New("directory not empty")

	err := WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertDirectory(ctx, tx, "d1"))
		return errNotEmpty
	})
	assert.ErrorIs(t, err, errNotEmpty)
	assert.Equal(t, 0, countDirectories(t, db))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := openSQLite(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertDirectory(ctx, tx, "d1"))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, countDirectories(t, db))
}

type recordingBeginner struct {
	opts *sql.TxOptions
}

func (r *recordingBeginner) BeginTx(_ context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	r.opts = opts
	return nil, errors.New("no conn")
}

func TestWithTx_BeginErrorSkipsFn(t *testing.T) {
	called := false
	err := WithTx(context.Background(), &recordingBeginner{}, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	assert.EqualError(t, err, "begin tx: no conn")
	assert.False(t, called)
}

func TestWithTx_Options(t *testing.T) {
	noop := func(context.Context, DBTX) error { return nil }

	b := &recordingBeginner{}
	_ = WithTx(context.Background(), b, noop)
	assert.Nil(t, b.opts)

	_ = WithTx(context.Background(), b, noop, Isolation(sql.LevelSerializable), ReadOnly())
	require.NotNil(t, b.opts)
	assert.Equal(t, sql.LevelSerializable, b.opts.Isolation)
	assert.True(t, b.opts.ReadOnly)
}

func TestWithTx_CommitAndRollbackFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))
	err = WithTx(context.Background(), db, func(context.Context, DBTX) error { return nil })
	assert.EqualError(t, err, "commit: connection reset")

	errConflict := errors.New("conflict")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))
	err = WithTx(context.Background(), db, func(context.Context, DBTX) error { return errConflict })
	assert.ErrorIs(t, err, errConflict)
	assert.ErrorContains(t, err, "rollback: connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}
