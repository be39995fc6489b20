package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lockSQL  = `SELECT stock FROM products WHERE id=\$1 FOR UPDATE`
	applySQL = `UPDATE products SET stock = stock \+ \$2`
	takeSQL  = `AND active AND stock >= \$2`
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestAdjustDeductLocksAscendingAndApplies(t *testing.T) {
	mock := newMock(t)
	ctx := context.Background()

	// duplicates merge, ids are visited in ascending order
	mock.ExpectQuery(lockSQL).WithArgs(int64(3)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(5))
	mock.ExpectQuery(lockSQL).WithArgs(int64(9)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(1))
	mock.ExpectExec(applySQL).WithArgs(int64(3), -4).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(applySQL).WithArgs(int64(9), -1).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	l := &Ledger{}
	err := l.Adjust(ctx, mock, []Line{{ProductID: 9, Qty: 1}, {ProductID: 3, Qty: 1}, {ProductID: 3, Qty: 3}}, Deduct)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustDeductIsAllOrNothing(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(lockSQL).WithArgs(int64(1)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(10))
	mock.ExpectQuery(lockSQL).WithArgs(int64(2)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(2))

	l := &Ledger{}
	err := l.Adjust(context.Background(), mock, []Line{{ProductID: 1, Qty: 4}, {ProductID: 2, Qty: 3}}, Deduct)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var se *apperr.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []apperr.StockDetail{{ProductID: 2, Required: 3, Available: 2}}, se.Details)
	// no UPDATE was issued for product 1
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustRestoreNeverChecksStock(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(lockSQL).WithArgs(int64(4)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(0))
	mock.ExpectExec(applySQL).WithArgs(int64(4), 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	l := &Ledger{}
	require.NoError(t, l.Adjust(context.Background(), mock, []Line{{ProductID: 4, Qty: 2}}, Restore))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustMissingProduct(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(lockSQL).WithArgs(int64(4)).WillReturnRows(pgxmock.NewRows([]string{"stock"}))

	l := &Ledger{}
	err := l.Adjust(context.Background(), mock, []Line{{ProductID: 4, Qty: 2}}, Deduct)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdjustRejectsNonPositiveQty(t *testing.T) {
	l := &Ledger{}
	err := l.Adjust(context.Background(), newMock(t), []Line{{ProductID: 4, Qty: 0}}, Deduct)
	require.ErrorIs(t, err, apperr.ErrInvalidQuantity)
}

func TestTakeStopsOnLostRace(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(takeSQL).WithArgs(int64(1), 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(takeSQL).WithArgs(int64(5), 3).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	l := &Ledger{}
	err := l.Take(context.Background(), mock, []Line{{ProductID: 5, Qty: 3}, {ProductID: 1, Qty: 2}})
	require.ErrorIs(t, err, apperr.ErrOutOfStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE products SET stock=\$2`).WithArgs(int64(8), 0).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	l := &Ledger{}
	require.ErrorIs(t, l.Set(context.Background(), mock, 8, 0), apperr.ErrNotFound)
	require.ErrorIs(t, l.Set(context.Background(), mock, 8, -1), apperr.ErrInvalidQuantity)
	require.NoError(t, mock.ExpectationsWereMet())
}
