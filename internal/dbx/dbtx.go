// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// helpers to run functions inside a transaction, and classification of
// retryable store failures.
package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx DBTX) error

// Transactor runs a TxFunc atomically. Services depend on this instead of
// *sql.DB so tests can substitute an in-memory implementation.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// SQLTransactor is the database/sql Transactor. Serialization failures and
// deadlocks restart the whole unit of work with exponential backoff.
type SQLTransactor struct {
	db         *sql.DB
	opts       *sql.TxOptions
	maxRetries uint64
	baseDelay  time.Duration
}

// NewSQLTransactor wraps db. maxRetries of 0 disables retries.
func NewSQLTransactor(db *sql.DB, maxRetries uint64) *SQLTransactor {
	return &SQLTransactor{db: db, maxRetries: maxRetries, baseDelay: 10 * time.Millisecond}
}

// WithinTx implements Transactor.
func (t *SQLTransactor) WithinTx(ctx context.Context, fn TxFunc) error {
	b := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.baseDelay))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := WithTx(ctx, t.db, t.opts, fn)
		if err != nil && isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// pg SQLSTATE codes worth another attempt.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// IsTransient reports whether err is a timeout, a dropped connection or a
// retryable conflict, i.e. something the caller may try again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if isRetryable(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	return pgconn.Timeout(err)
}

// IsUniqueViolation reports a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// Classify maps transient failures to common.ErrTransientStore, keeping the
// original error in the chain for logs. Other errors pass through.
func Classify(err error) error {
	if err == nil || errors.Is(err, common.ErrTransientStore) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", common.ErrTransientStore, err)
	}
	return err
}
