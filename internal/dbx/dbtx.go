// Package dbx holds the database plumbing shared by the metadata
// repositories: the DBTX handle accepted by every repository, transaction
// scoping for multi-statement checks such as directory deletion, and
// PostgreSQL error classification.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the handle repositories run queries on: *sql.DB outside a
// transaction, *sql.Tx inside WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner starts transactions. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TxOption adjusts the options a transaction is started with.
type TxOption func(*sql.TxOptions)

// Isolation sets the isolation level.
func Isolation(level sql.IsolationLevel) TxOption {
	return func(o *sql.TxOptions) { o.Isolation = level }
}

// ReadOnly marks the transaction read-only.
func ReadOnly() TxOption {
	return func(o *sql.TxOptions) { o.ReadOnly = true }
}

func txOptions(opts []TxOption) *sql.TxOptions {
	if len(opts) == 0 {
		return nil
	}
	o := &sql.TxOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back when it returns an error or panics; panics are
// re-raised after the rollback. A failed rollback is reported together with
// the error of fn, so errors.Is still matches the latter.
//
//	err := dbx.WithTx(ctx, db, func(ctx context.Context, tx dbx.DBTX) error {
//	    n, err := repos.Directories(tx).CountChildren(ctx, id)
//	    ...
//	}, dbx.Isolation(sql.LevelSerializable))
func WithTx(ctx context.Context, db Beginner, fn func(ctx context.Context, tx DBTX) error, opts ...TxOption) (err error) {
	tx, err := db.BeginTx(ctx, txOptions(opts))
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit: %w", cErr)
		}
	}()

	return fn(ctx, tx)
}
