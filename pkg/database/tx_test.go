package database_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
)

func TestOnCommit_WithoutTxRunsImmediately(t *testing.T) {
	ran := false
	database.OnCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)
}

func TestTransaction_RunsHooksAfterCommit(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := database.Wrap(sqlx.NewDb(raw, "postgres"), nil)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE materials").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ran := false
	err = db.Transaction(context.Background(), func(ctx context.Context, tx *sqlx.Tx) error {
		got, ok := database.TxFromContext(ctx)
		require.True(t, ok)
		assert.Same(t, tx, got)
		assert.Same(t, tx, database.QuerierFromContext(ctx, db))

		database.OnCommit(ctx, func() { ran = true })
		assert.False(t, ran)

		_, err := tx.ExecContext(ctx, "UPDATE materials SET quantity = 1")
		return err
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_RollbackDropsHooks(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := database.Wrap(sqlx.NewDb(raw, "postgres"), nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	ran := false
	err = db.Transaction(context.Background(), func(ctx context.Context, tx *sqlx.Tx) error {
		database.OnCommit(ctx, func() { ran = true })
		return errors.BusinessRule("nope")
	})
	require.Error(t, err)
	assert.False(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepoint_ReleasesOnSuccess(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectExec("SAVEPOINT item").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE inventory_units").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RELEASE SAVEPOINT item").WillReturnResult(sqlmock.NewResult(0, 0))

	err = database.Savepoint(context.Background(), db, "item", func() error {
		_, err := db.ExecContext(context.Background(), "UPDATE inventory_units SET is_picked = true")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepoint_RollsBackOnError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectExec("SAVEPOINT item").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT item").WillReturnResult(sqlmock.NewResult(0, 0))

	err = database.Savepoint(context.Background(), db, "item", func() error {
		return errors.BusinessRule("unit is already picked")
	})
	require.Error(t, err)
	assert.Equal(t, 400, errors.StatusCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
