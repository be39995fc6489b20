package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/tracing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"strings"
)

type CheckoutResult struct {
	OrderID    string      `json:"order_id"`
	TotalCents int64       `json:"total_cents"`
	Items      []OrderItem `json:"items"`
}

func (sh Shipping) validate() error {
	if strings.TrimSpace(sh.RecipientName) == "" || strings.TrimSpace(sh.Address) == "" {
		return fmt.Errorf("shipping recipient and address are required: %w", apperr.ErrInvalidInput)
	}
	return nil
}

type checkoutLine struct {
	item   OrderItem
	stock  int
	active bool
}

// Materialize turns the user's cart into a pending order with stock already
// deducted. Either the order exists fully stocked and the cart is empty, or
// no order row exists. Invalid lines are removed from the cart (and that
// removal is kept) before the error is returned.
func (s *Service) Materialize(ctx context.Context, userID string, ship Shipping) (res CheckoutResult, err error) {
	ctx, span := tracing.Start(ctx, "orders.Materialize", attribute.String("user.id", userID))
	defer func() {
		tracing.End(span, err)
		s.Metrics.Checkout(checkoutResult(err))
	}()

	if err := ship.validate(); err != nil {
		return res, err
	}

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		// 1) lock cart: checkout paralel dari user yang sama antri di sini
		var cartID int64
		err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&cartID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		// 2) live product state, never the cart view
		lines, err := loadCheckoutLines(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.ErrEmptyCart
		}

		// 3) partition
		var bad []int64
		var inactive int
		var short []apperr.StockDetail
		valid := make([]checkoutLine, 0, len(lines))
		for _, ln := range lines {
			switch {
			case !ln.active:
				bad = append(bad, ln.item.ProductID)
				inactive++
			case ln.item.Qty > ln.stock:
				bad = append(bad, ln.item.ProductID)
				short = append(short, apperr.StockDetail{ProductID: ln.item.ProductID, Required: ln.item.Qty, Available: ln.stock})
			default:
				valid = append(valid, ln)
			}
		}
		if len(bad) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND product_id = ANY($2)`, cartID, bad); err != nil {
				return fmt.Errorf("prune cart: %w", err)
			}
			s.Metrics.CartPruned(len(bad))
			logging.FromContext(ctx, s.Log).Info("checkout pruned cart",
				zap.String("user_id", userID), zap.Int64s("product_ids", bad))
			if inactive > 0 {
				return postgres.CommitWith(fmt.Errorf("%d inactive lines: %w", inactive, apperr.ErrCartInactivePruned))
			}
			return postgres.CommitWith(apperr.OutOfStock(short...))
		}

		// 4) order + snapshot lines
		res = CheckoutResult{OrderID: uuid.NewString(), Items: make([]OrderItem, 0, len(valid))}
		for _, ln := range valid {
			res.TotalCents += ln.item.SubtotalCents
			res.Items = append(res.Items, ln.item)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO orders(id, user_id, status, total_cents, recipient_name, ship_phone, ship_address,
			                   ship_subdistrict, ship_district, ship_province, ship_zipcode)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			res.OrderID, userID, StatusPending, res.TotalCents, ship.RecipientName, ship.Phone, ship.Address,
			ship.Subdistrict, ship.District, ship.Province, ship.Zipcode); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		take := make([]inventory.Line, 0, len(res.Items))
		for _, it := range res.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items(order_id, product_id, qty, price_cents) VALUES ($1,$2,$3,$4)`,
				res.OrderID, it.ProductID, it.Qty, it.PriceCents); err != nil {
				return fmt.Errorf("insert order item %d: %w", it.ProductID, err)
			}
			take = append(take, inventory.Line{ProductID: it.ProductID, Qty: it.Qty})
		}

		// 5) conditional decrement; kalah race -> rollback semua
		if err := s.Ledger.Take(ctx, tx, take); err != nil {
			return err
		}

		// 6) kosongkan cart, tandai stok sudah terpotong
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET stock_deducted=TRUE WHERE id=$1`, res.OrderID); err != nil {
			return fmt.Errorf("flag order: %w", err)
		}

		prices := make([]ItemPrice, 0, len(res.Items))
		for _, it := range res.Items {
			prices = append(prices, ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
		}
		return s.emit(ctx, tx, TopicOrderCreated, EventOrderCreated, res.OrderID, OrderCreatedPayload{
			OrderID: res.OrderID, UserID: userID, Status: StatusPending, Items: prices, TotalCents: res.TotalCents,
		})
	})
	if err != nil {
		return CheckoutResult{}, err
	}
	logging.FromContext(ctx, s.Log).Info("order created",
		zap.String("order_id", res.OrderID), zap.String("user_id", userID), zap.Int64("total_cents", res.TotalCents))
	return res, nil
}

func loadCheckoutLines(ctx context.Context, tx pgx.Tx, cartID int64) ([]checkoutLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT ci.product_id, p.name, p.price_cents, p.stock, p.active, ci.qty
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id=$1
		ORDER BY ci.product_id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	var out []checkoutLine
	for rows.Next() {
		var ln checkoutLine
		if err := rows.Scan(&ln.item.ProductID, &ln.item.Name, &ln.item.PriceCents, &ln.stock, &ln.active, &ln.item.Qty); err != nil {
			return nil, err
		}
		ln.item.SubtotalCents = ln.item.PriceCents * int64(ln.item.Qty)
		out = append(out, ln)
	}
	return out, rows.Err()
}

func checkoutResult(err error) string {
	if err == nil {
		return "OK"
	}
	return apperr.Code(err)
}
