package postgres

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB interface {
	Querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type commitThenFail struct{ err error }

func (c commitThenFail) Error() string { return c.err.Error() }
func (c commitThenFail) Unwrap() error { return c.err }

// CommitWith makes WithTx commit the work done so far and then return err.
func CommitWith(err error) error { return commitThenFail{err: err} }

// WithTx runs fn in a transaction. Any error from fn rolls everything back,
// unless it was produced by CommitWith.
func WithTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		var keep commitThenFail
		if !errors.As(err, &keep) {
			return Classify(err)
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			return Classify(fmt.Errorf("commit tx: %w", cerr))
		}
		return keep.err
	}
	if err := tx.Commit(ctx); err != nil {
		return Classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Classify turns lock and serialization failures into apperr.ErrTransient.
func Classify(err error) error {
	if err == nil || errors.Is(err, apperr.ErrTransient) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57014": // query_canceled (statement/lock timeout)
			return errors.Join(apperr.ErrTransient, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(apperr.ErrTransient, err)
	}
	return err
}
