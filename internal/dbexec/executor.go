// Package dbexec provides the SQL execution layer used by the relational
// graph backend: a pooled executor, transactions, and savepoint scopes.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"graphdb-graphql/internal/logging"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so the pool and a transaction can be
// used interchangeably.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	defer logStatement(ctx, query, time.Now())
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	defer logStatement(ctx, query, time.Now())
	return e.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction on the pool.
func (e *StandardExecutor) BeginTx(ctx context.Context, opts *sql.TxOptions) (*TxExecutor, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	tx, err := e.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &TxExecutor{tx: tx}, nil
}

func (e *StandardExecutor) Ping(ctx context.Context) error {
	if e.db == nil {
		return sql.ErrConnDone
	}
	return e.db.PingContext(ctx)
}

func (e *StandardExecutor) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// TxExecutor executes queries inside one transaction.
type TxExecutor struct {
	tx *sql.Tx
}

func (t *TxExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	defer logStatement(ctx, query, time.Now())
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *TxExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	defer logStatement(ctx, query, time.Now())
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *TxExecutor) Commit() error {
	return t.tx.Commit()
}

func (t *TxExecutor) Rollback() error {
	return t.tx.Rollback()
}

// RollbackError reports a savepoint that could not be restored after its
// scope failed with Cause. The transaction state is unknown afterwards.
type RollbackError struct {
	Savepoint string
	Cause     error
	Err       error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback to savepoint %s failed: %v)", e.Cause, e.Savepoint, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Cause
}

// Savepoint runs fn inside a named savepoint. When fn fails the transaction
// is rolled back to the savepoint and fn's error is returned, so the
// transaction stays usable.
func (t *TxExecutor) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if _, err := t.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := t.ExecContext(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return &RollbackError{Savepoint: name, Cause: err, Err: rbErr}
		}
		return err
	}
	_, err := t.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func logStatement(ctx context.Context, query string, start time.Time) {
	logger := logging.FromContext(ctx)
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	logger.Debug("sql statement",
		slog.String("statement", query),
		slog.Duration("duration", time.Since(start)),
	)
}
