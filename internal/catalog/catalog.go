package catalog

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"strings"
	"time"
)

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type NewProduct struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

// Patch fields left nil keep their stored value. Stock is not patchable here:
// it only moves through AdjustStock.
type Patch struct {
	Name       *string `json:"name"`
	Model      *string `json:"model"`
	PriceCents *int64  `json:"price_cents"`
}

const (
	publicLimit = 200
	adminLimit  = 500
	productCols = `id, name, model, price_cents, stock, active, created_at, updated_at`
)

type Service struct {
	DB     postgres.DB
	Ledger *inventory.Ledger
	Log    *zap.Logger
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Model, &p.PriceCents, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Service) query(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns purchasable products, newest first, optionally filtered by a
// case-insensitive match on name or model.
func (s *Service) List(ctx context.Context, q string) ([]Product, error) {
	return s.query(ctx, `
		SELECT `+productCols+` FROM products
		WHERE active AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR model ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, strings.TrimSpace(q), publicLimit)
}

// AdminList includes archived products.
func (s *Service) AdminList(ctx context.Context) ([]Product, error) {
	return s.query(ctx, `SELECT `+productCols+` FROM products ORDER BY id DESC LIMIT $1`, adminLimit)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	p, err := s.AdminGet(ctx, id)
	if err == nil && !p.Active {
		return Product{}, fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
	}
	return p, err
}

func (s *Service) AdminGet(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("load product %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, in NewProduct) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.PriceCents < 0 {
		return Product{}, fmt.Errorf("name and a non-negative price are required: %w", apperr.ErrInvalidInput)
	}
	if in.Stock < 0 {
		return Product{}, apperr.ErrInvalidQuantity
	}
	p, err := scanProduct(s.DB.QueryRow(ctx, `
		INSERT INTO products(name, model, price_cents, stock) VALUES ($1,$2,$3,$4)
		RETURNING `+productCols, in.Name, strings.TrimSpace(in.Model), in.PriceCents, in.Stock))
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	logging.FromContext(ctx, s.Log).Info("product created", zap.Int64("product_id", p.ID), zap.Int("stock", p.Stock))
	return p, nil
}

// Update edits descriptive fields and price. Existing order lines keep the
// price they were created with.
func (s *Service) Update(ctx context.Context, id int64, in Patch) (Product, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Product{}, fmt.Errorf("name cannot be empty: %w", apperr.ErrInvalidInput)
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return Product{}, fmt.Errorf("price cannot be negative: %w", apperr.ErrInvalidInput)
	}
	p, err := scanProduct(s.DB.QueryRow(ctx, `
		UPDATE products
		SET name=COALESCE($2, name), model=COALESCE($3, model), price_cents=COALESCE($4, price_cents), updated_at=now()
		WHERE id=$1
		RETURNING `+productCols, id, in.Name, in.Model, in.PriceCents))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return p, nil
}

// AdjustStock applies a manual delta through the ledger. A delta that would
// take stock below zero fails with InsufficientStock and changes nothing.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (p Product, err error) {
	if delta == 0 {
		return Product{}, apperr.ErrInvalidQuantity
	}
	line := inventory.Line{ProductID: id, Qty: delta}
	dir := inventory.Restore
	if delta < 0 {
		dir, line.Qty = inventory.Deduct, -delta
	}
	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := s.Ledger.Adjust(ctx, tx, []inventory.Line{line}, dir); err != nil {
			return err
		}
		p, err = scanProduct(tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
		return err
	})
	if err != nil {
		return Product{}, err
	}
	logging.FromContext(ctx, s.Log).Info("stock adjusted", zap.Int64("product_id", id), zap.Int("delta", delta), zap.Int("stock", p.Stock))
	return p, nil
}

// Archive takes a product off sale: it disappears from every cart, stops
// being purchasable, and its stock drops to zero.
func (s *Service) Archive(ctx context.Context, id int64) error {
	var removed int64
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock product %d: %w", id, err)
		}
		ct, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE product_id=$1`, id)
		if err != nil {
			return fmt.Errorf("remove from carts: %w", err)
		}
		removed = ct.RowsAffected()
		if _, err := tx.Exec(ctx, `UPDATE products SET active=FALSE, updated_at=now() WHERE id=$1`, id); err != nil {
			return fmt.Errorf("archive product %d: %w", id, err)
		}
		return s.Ledger.Set(ctx, tx, id, 0)
	})
	if err != nil {
		return err
	}
	logging.FromContext(ctx, s.Log).Info("product archived", zap.Int64("product_id", id), zap.Int64("cart_lines_removed", removed))
	return nil
}

// Restore puts an archived product back on sale. Stock stays as it is.
func (s *Service) Restore(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `UPDATE products SET active=TRUE, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("restore product %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
