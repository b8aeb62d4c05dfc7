package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockExecutor(t *testing.T) (*StandardExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStandardExecutor(db), mock
}

func TestStandardExecutor_NilDB(t *testing.T) {
	exec := NewStandardExecutor(nil)
	ctx := context.Background()

	_, err := exec.QueryContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	_, err = exec.ExecContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	_, err = exec.BeginTx(ctx, nil)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.ErrorIs(t, exec.Ping(ctx), sql.ErrConnDone)
	assert.NoError(t, exec.Close())
}

func TestSavepoint_Release(t *testing.T) {
	exec, mock := newMockExecutor(t)
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO t VALUES (?)").WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("RELEASE SAVEPOINT sp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := exec.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = tx.Savepoint(ctx, "sp", func(ctx context.Context) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO t VALUES (?)", 1)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepoint_RollsBackOnError(t *testing.T) {
	exec, mock := newMockExecutor(t)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := exec.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = tx.Savepoint(ctx, "sp", func(context.Context) error { return boom })
	assert.Same(t, boom, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepoint_RollbackFailure(t *testing.T) {
	exec, mock := newMockExecutor(t)
	boom := errors.New("boom")
	lost := errors.New("connection lost")
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp").WillReturnError(lost)

	ctx := context.Background()
	tx, err := exec.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = tx.Savepoint(ctx, "sp", func(context.Context) error { return boom })

	var rbErr *RollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.Same(t, lost, rbErr.Err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rollback to savepoint sp failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
