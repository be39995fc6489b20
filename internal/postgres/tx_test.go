package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET active").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE products SET active = true")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithTx(context.Background(), mock, func(pgx.Tx) error {
		return apperr.ErrEmptyCart
	})
	require.ErrorIs(t, err, apperr.ErrEmptyCart)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommitWith(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM cart_items").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		if _, err := tx.Exec(context.Background(), "DELETE FROM cart_items"); err != nil {
			return err
		}
		return CommitWith(apperr.ErrCartInactivePruned)
	})
	require.ErrorIs(t, err, apperr.ErrCartInactivePruned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	deadlock := fmt.Errorf("lock product: %w", &pgconn.PgError{Code: "40P01"})
	assert.ErrorIs(t, Classify(deadlock), apperr.ErrTransient)
	assert.ErrorIs(t, Classify(deadlock), deadlock)

	assert.ErrorIs(t, Classify(&pgconn.PgError{Code: "55P03"}), apperr.ErrTransient)
	assert.ErrorIs(t, Classify(context.DeadlineExceeded), apperr.ErrTransient)

	unique := &pgconn.PgError{Code: "23505"}
	assert.False(t, errors.Is(Classify(unique), apperr.ErrTransient))
	assert.Nil(t, Classify(nil))
}
