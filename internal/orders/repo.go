package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"time"
)

// Repo is the read side of orders. It never takes locks.
type Repo struct{ DB postgres.Querier }

const orderCols = `o.id, o.user_id, o.status, o.total_cents, o.stock_deducted, o.tracking_no,
	o.recipient_name, o.ship_phone, o.ship_address, o.ship_subdistrict, o.ship_district, o.ship_province, o.ship_zipcode,
	o.created_at, o.updated_at`

func orderDest(o *Order) []any {
	return []any{&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.StockDeducted, &o.TrackingNo,
		&o.Shipping.RecipientName, &o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.Subdistrict,
		&o.Shipping.District, &o.Shipping.Province, &o.Shipping.Zipcode,
		&o.CreatedAt, &o.UpdatedAt}
}

// Get loads an order with its lines and payment. A non-empty userID scopes the
// lookup to that user's orders; someone else's order is reported as missing.
func (r *Repo) Get(ctx context.Context, orderID, userID string) (Detail, error) {
	if err := parseID("order", orderID); err != nil {
		return Detail{}, err
	}
	var d Detail
	err := r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders o WHERE o.id=$1`, orderID).Scan(orderDest(&d.Order)...)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && userID != "" && d.Order.UserID != userID) {
		return Detail{}, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	if err != nil {
		return Detail{}, fmt.Errorf("load order: %w", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, p.name, oi.qty, oi.price_cents
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id=$1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return Detail{}, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	d.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Qty, &it.PriceCents); err != nil {
			return Detail{}, err
		}
		it.SubtotalCents = it.PriceCents * int64(it.Qty)
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Detail{}, err
	}
	rows.Close()

	var p Payment
	err = r.DB.QueryRow(ctx, `
		SELECT id, order_id, status, proof_ref, uploaded_at, reviewed_at
		FROM payments WHERE order_id=$1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.Status, &p.ProofRef, &p.UploadedAt, &p.ReviewedAt)
	switch {
	case err == nil:
		d.Payment = &p
	case !errors.Is(err, pgx.ErrNoRows):
		return Detail{}, fmt.Errorf("load payment: %w", err)
	}
	return d, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Summary, error) {
	return r.list(ctx, `WHERE o.user_id=$1`, userID)
}

// List is the admin listing, optionally filtered by order status.
func (r *Repo) List(ctx context.Context, status string) ([]Summary, error) {
	if status == "" {
		return r.list(ctx, "")
	}
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, `WHERE o.status=$1`, st)
}

func (r *Repo) list(ctx context.Context, where string, args ...any) ([]Summary, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+`, COALESCE(SUM(oi.qty), 0), pay.status
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN payments pay ON pay.order_id = o.id
		`+where+`
		GROUP BY o.id, pay.status
		ORDER BY o.created_at DESC
		LIMIT 500`, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		dest := append(orderDest(&s.Order), &s.ItemsCount, &s.PaymentStatus)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StatusView is what the status endpoint and its cache need; UserID scopes it.
type StatusView struct {
	OrderID   string
	UserID    string
	Status    Status
	UpdatedAt time.Time
}

// GetStatus is the cheap lookup behind the status cache.
func (r *Repo) GetStatus(ctx context.Context, orderID string) (StatusView, error) {
	if err := parseID("order", orderID); err != nil {
		return StatusView{}, err
	}
	v := StatusView{OrderID: orderID}
	err := r.DB.QueryRow(ctx, `SELECT user_id, status, updated_at FROM orders WHERE id=$1`, orderID).
		Scan(&v.UserID, &v.Status, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusView{}, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	if err != nil {
		return StatusView{}, fmt.Errorf("load order status: %w", err)
	}
	return v, nil
}
