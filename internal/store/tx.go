// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a DBTX that can open transactions.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// Conn returns the transaction stored in ctx by InTransaction, or pool when
// the caller is not inside one.
func Conn(ctx context.Context, pool DBTX) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// Retry defaults for serialization failures and deadlocks.
const (
	DefaultTxAttempts = 4
	DefaultTxBackoff  = 15 * time.Millisecond
)

// Transactor runs functions inside a single PostgreSQL transaction.
// Repositories resolve their querier through Conn so every call made with the
// transaction context joins it.
type Transactor struct {
	pool     Pool
	attempts uint64
	backoff  time.Duration
}

// TransactorOption configures a Transactor.
type TransactorOption func(*Transactor)

// WithRetry overrides how many times a conflicting transaction is attempted
// and the base of its exponential backoff.
func WithRetry(attempts uint64, base time.Duration) TransactorOption {
	return func(t *Transactor) {
		if attempts > 0 {
			t.attempts = attempts
		}
		if base > 0 {
			t.backoff = base
		}
	}
}

// NewTransactor creates a Transactor backed by the given pool.
func NewTransactor(pool Pool, opts ...TransactorOption) *Transactor {
	t := &Transactor{pool: pool, attempts: DefaultTxAttempts, backoff: DefaultTxBackoff}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// If fn returns nil the transaction is committed, otherwise it is rolled back.
// Serialization failures and deadlocks restart fn in a fresh transaction.
// A call made with a context that already carries a transaction joins it.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	backoff := retry.WithMaxRetries(t.attempts-1, retry.NewExponential(t.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := t.runOnce(ctx, fn)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (t *Transactor) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(errutil.Storage(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(errutil.Storage(err))
	}
	return nil
}

// IsRetryable reports whether err is a PostgreSQL serialization failure or
// deadlock, which resolve by rerunning the whole transaction.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
