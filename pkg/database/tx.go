package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/catalog-engine/pkg/retry"
)

// Transactor runs a unit of work inside a single transaction.
// Services depend on this interface so tests can run without PostgreSQL.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PostgreSQL SQLSTATEs that make a whole transaction safe to replay.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// txConflictError marks a transaction aborted by a concurrent writer.
type txConflictError struct {
	err error
}

func (e *txConflictError) Error() string     { return e.err.Error() }
func (e *txConflictError) Unwrap() error     { return e.err }
func (e *txConflictError) IsRetryable() bool { return true }

// ErrNonTxScope is returned by WithTx when ctx carries a scope that is not a transaction.
var ErrNonTxScope = errors.New("database: context scope is not a transaction")

// WithTx begins a transaction, stores it in the context scope and runs fn.
// The transaction commits when fn returns nil and rolls back otherwise.
// If ctx already carries a transaction scope, fn joins it instead of opening a
// nested transaction. A scope holding a plain connection is refused with ErrNonTxScope.
// Serialization failures and deadlocks replay fn from the start.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if scope, ok := GetScope(ctx); ok {
		if _, inTx := scope.Conn.(pgx.Tx); !inTx {
			return ErrNonTxScope
		}
		return fn(ctx)
	}

	err := retry.DoIfRetryable(ctx, db.retryConfig(), func() error {
		return db.runTx(ctx, fn)
	})

	var conflict *txConflictError
	if errors.As(err, &conflict) {
		return conflict.err
	}
	return err
}

func (db *DB) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(SetScope(ctx, &Scope{Conn: tx})); err != nil {
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func classifyTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) &&
		(pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected) {
		return &txConflictError{err: err}
	}
	return err
}

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
