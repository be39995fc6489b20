package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/jackc/pgx/v5"
)

// syncStock brings the ledger in line with want for this order. It is the
// single place where stock_deducted flips, for both the admin status path
// and the payment path, so an order is never deducted twice.
func (s *Service) syncStock(ctx context.Context, tx pgx.Tx, o *lockedOrder, want bool) error {
	if o.StockDeducted == want {
		return nil
	}
	lines, err := orderLines(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	dir := inventory.Restore
	if want {
		dir = inventory.Deduct
	}
	if err := s.Ledger.Adjust(ctx, tx, lines, dir); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET stock_deducted=$2, updated_at=now() WHERE id=$1`, o.ID, want); err != nil {
		return fmt.Errorf("flag order %s: %w", o.ID, err)
	}
	o.StockDeducted = want
	return nil
}

func orderLines(ctx context.Context, tx pgx.Tx, orderID string) ([]inventory.Line, error) {
	rows, err := tx.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	var out []inventory.Line
	for rows.Next() {
		var ln inventory.Line
		if err := rows.Scan(&ln.ProductID, &ln.Qty); err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}
