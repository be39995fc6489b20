package cart

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/tracing"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Store is the per-user cart. Lines are validated against live product
// state on every mutation and pruned on every read.
type Store struct {
	DB      postgres.DB
	Metrics *metrics.Shop
	Log     *zap.Logger
}

type LineState struct {
	CartID     int64 `json:"cart_id"`
	ProductID  int64 `json:"product_id"`
	Qty        int   `json:"qty"`
	ItemsCount int   `json:"items_count"`
}

type Item struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	Model         string `json:"model"`
	PriceCents    int64  `json:"price_cents"`
	Stock         int    `json:"stock"`
	Qty           int    `json:"qty"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type View struct {
	Items      []Item `json:"items"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
	Pruned     bool   `json:"pruned"`
}

type product struct {
	stock  int
	active bool
}

// AddLine merges qty into the user's line for productID, creating the cart if needed.
func (s *Store) AddLine(ctx context.Context, userID string, productID int64, qty int) (out LineState, err error) {
	ctx, span := tracing.Start(ctx, "cart.AddLine",
		attribute.String("user.id", userID), attribute.Int64("product.id", productID), attribute.Int("qty", qty))
	defer func() { tracing.End(span, err) }()

	if qty <= 0 {
		return LineState{}, apperr.ErrInvalidQuantity
	}

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		// cart dulu, baru product: urutan lock sama dengan checkout
		cartID, err := ensureCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		p, err := loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if p.stock <= 0 {
			return apperr.OutOfStock(apperr.StockDetail{ProductID: productID, Required: qty, Available: p.stock})
		}

		var existing int
		err = tx.QueryRow(ctx, `SELECT qty FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID).Scan(&existing)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load cart line: %w", err)
		}
		newQty := existing + qty
		if newQty > p.stock {
			return apperr.OutOfStock(apperr.StockDetail{ProductID: productID, Required: newQty, Available: p.stock})
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_items(cart_id, product_id, qty) VALUES ($1,$2,$3)
			ON CONFLICT (cart_id, product_id) DO UPDATE SET qty = EXCLUDED.qty`,
			cartID, productID, newQty); err != nil {
			return fmt.Errorf("upsert cart line: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(qty),0) FROM cart_items WHERE cart_id=$1`, cartID).Scan(&count); err != nil {
			return fmt.Errorf("count cart: %w", err)
		}
		out = LineState{CartID: cartID, ProductID: productID, Qty: newQty, ItemsCount: count}
		return nil
	})
	return out, err
}

// SetLineQty replaces the quantity of an existing line.
func (s *Store) SetLineQty(ctx context.Context, userID string, productID int64, qty int) (out LineState, err error) {
	ctx, span := tracing.Start(ctx, "cart.SetLineQty",
		attribute.String("user.id", userID), attribute.Int64("product.id", productID), attribute.Int("qty", qty))
	defer func() { tracing.End(span, err) }()

	if qty <= 0 {
		return LineState{}, apperr.ErrInvalidQuantity
	}

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		p, err := loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if qty > p.stock {
			return apperr.OutOfStock(apperr.StockDetail{ProductID: productID, Required: qty, Available: p.stock})
		}
		ct, err := tx.Exec(ctx, `UPDATE cart_items SET qty=$3 WHERE cart_id=$1 AND product_id=$2`, cartID, productID, qty)
		if err != nil {
			return fmt.Errorf("update cart line: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("cart line %d: %w", productID, apperr.ErrNotFound)
		}
		out = LineState{CartID: cartID, ProductID: productID, Qty: qty}
		return nil
	})
	return out, err
}

// RemoveLine deletes the user's line for productID. Removing an absent line is a no-op.
func (s *Store) RemoveLine(ctx context.Context, userID string, productID int64) (err error) {
	ctx, span := tracing.Start(ctx, "cart.RemoveLine",
		attribute.String("user.id", userID), attribute.Int64("product.id", productID))
	defer func() { tracing.End(span, err) }()

	return postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID); err != nil {
			return fmt.Errorf("delete cart line: %w", err)
		}
		return nil
	})
}

// View returns the purchasable lines of the cart. Lines whose product is
// inactive or has no stock are deleted from storage first.
func (s *Store) View(ctx context.Context, userID string) (v View, err error) {
	ctx, span := tracing.Start(ctx, "cart.View", attribute.String("user.id", userID))
	defer func() { tracing.End(span, err) }()

	v = View{Items: []Item{}}
	var pruned []int64
	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var cartID int64
		err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id=$1`, userID).Scan(&cartID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT ci.product_id, p.name, p.model, p.price_cents, p.stock, p.active, ci.qty
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.cart_id=$1
			ORDER BY ci.added_at DESC, ci.product_id`, cartID)
		if err != nil {
			return fmt.Errorf("load cart lines: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var it Item
			var active bool
			if err := rows.Scan(&it.ProductID, &it.Name, &it.Model, &it.PriceCents, &it.Stock, &active, &it.Qty); err != nil {
				return err
			}
			if !active || it.Stock <= 0 {
				pruned = append(pruned, it.ProductID)
				continue
			}
			it.SubtotalCents = it.PriceCents * int64(it.Qty)
			v.Items = append(v.Items, it)
			v.TotalCents += it.SubtotalCents
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		if len(pruned) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND product_id = ANY($2)`, cartID, pruned); err != nil {
				return fmt.Errorf("prune cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}

	v.Count = len(v.Items)
	v.Pruned = len(pruned) > 0
	if v.Pruned {
		s.Metrics.CartPruned(len(pruned))
		logging.FromContext(ctx, s.Log).Info("cart pruned",
			zap.String("user_id", userID), zap.Int64s("product_ids", pruned))
	}
	return v, nil
}

func ensureCart(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO carts(user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`, userID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure cart: %w", err)
	}
	return id, nil
}

func lockCart(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("cart: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lock cart: %w", err)
	}
	return id, nil
}

func loadProduct(ctx context.Context, tx pgx.Tx, productID int64) (product, error) {
	var p product
	err := tx.QueryRow(ctx, `SELECT stock, active FROM products WHERE id=$1`, productID).Scan(&p.stock, &p.active)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("product %d: %w", productID, apperr.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("load product %d: %w", productID, err)
	}
	if !p.active {
		return p, fmt.Errorf("product %d: %w", productID, apperr.ErrProductInactive)
	}
	return p, nil
}
