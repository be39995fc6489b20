package inventory

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"sort"
)

type Line struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type Direction int

const (
	Deduct  Direction = -1
	Restore Direction = 1
)

func (d Direction) String() string {
	if d == Deduct {
		return "deduct"
	}
	return "restore"
}

// Ledger is the only writer of products.stock. Every method runs on the
// caller's transaction; the caller owns commit/rollback and flag bookkeeping.
type Ledger struct {
	Metrics *metrics.Shop
}

// Adjust applies dir*qty to each product, all or nothing. Rows are locked in
// ascending product id order so overlapping batches cannot deadlock.
func (l *Ledger) Adjust(ctx context.Context, q postgres.Querier, lines []Line, dir Direction) error {
	merged, err := merge(lines)
	if err != nil {
		return err
	}

	// 1) lock + validate semua baris dulu, belum ada perubahan
	var short []apperr.StockDetail
	for _, ln := range merged {
		var stock int
		err := q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, ln.ProductID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %d: %w", ln.ProductID, apperr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock product %d: %w", ln.ProductID, err)
		}
		if dir == Deduct && stock < ln.Qty {
			short = append(short, apperr.StockDetail{ProductID: ln.ProductID, Required: ln.Qty, Available: stock})
		}
	}
	if len(short) > 0 {
		return apperr.Insufficient(short...)
	}

	// 2) apply
	units := 0
	for _, ln := range merged {
		if _, err := q.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			ln.ProductID, int(dir)*ln.Qty); err != nil {
			return fmt.Errorf("%s product %d: %w", dir, ln.ProductID, err)
		}
		units += ln.Qty
	}
	l.Metrics.StockMoved(dir.String(), units)
	return nil
}

// Take is the checkout path: one conditional UPDATE per product, no retry.
// A zero row count means a concurrent order won the stock, or the product
// was disabled, and the whole batch must be abandoned by the caller.
func (l *Ledger) Take(ctx context.Context, q postgres.Querier, lines []Line) error {
	merged, err := merge(lines)
	if err != nil {
		return err
	}
	units := 0
	for _, ln := range merged {
		ct, err := q.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id=$1 AND active AND stock >= $2`, ln.ProductID, ln.Qty)
		if err != nil {
			return fmt.Errorf("take product %d: %w", ln.ProductID, err)
		}
		if ct.RowsAffected() != 1 {
			return apperr.OutOfStock(apperr.StockDetail{ProductID: ln.ProductID, Required: ln.Qty})
		}
		units += ln.Qty
	}
	l.Metrics.StockMoved(Deduct.String(), units)
	return nil
}

// Set overwrites the stock of a single product (admin adjustment / archive).
func (l *Ledger) Set(ctx context.Context, q postgres.Querier, productID int64, stock int) error {
	if stock < 0 {
		return apperr.ErrInvalidQuantity
	}
	ct, err := q.Exec(ctx, `UPDATE products SET stock=$2, updated_at = now() WHERE id=$1`, productID, stock)
	if err != nil {
		return fmt.Errorf("set stock product %d: %w", productID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, apperr.ErrNotFound)
	}
	return nil
}

// merge folds duplicate products together and sorts by id ascending.
func merge(lines []Line) ([]Line, error) {
	byID := make(map[int64]int, len(lines))
	for _, ln := range lines {
		if ln.Qty <= 0 {
			return nil, fmt.Errorf("product %d: %w", ln.ProductID, apperr.ErrInvalidQuantity)
		}
		byID[ln.ProductID] += ln.Qty
	}
	out := make([]Line, 0, len(byID))
	for id, qty := range byID {
		out = append(out, Line{ProductID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
