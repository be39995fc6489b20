package reports

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"time"
)

const dateLayout = "2006-01-02"

// Range covers whole days: From 00:00 up to the end of To.
type Range struct {
	From time.Time
	To   time.Time
}

// CurrentMonth is the default report range.
func CurrentMonth(now time.Time) Range {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Range{From: first, To: first.AddDate(0, 1, -1)}
}

// ParseRange reads YYYY-MM-DD bounds. Either bound missing means the current month.
func ParseRange(from, to string, now time.Time) (Range, error) {
	if from == "" || to == "" {
		return CurrentMonth(now), nil
	}
	f, err := time.ParseInLocation(dateLayout, from, now.Location())
	if err != nil {
		return Range{}, fmt.Errorf("from %q: %w", from, apperr.ErrInvalidInput)
	}
	t, err := time.ParseInLocation(dateLayout, to, now.Location())
	if err != nil {
		return Range{}, fmt.Errorf("to %q: %w", to, apperr.ErrInvalidInput)
	}
	if t.Before(f) {
		return Range{}, fmt.Errorf("to before from: %w", apperr.ErrInvalidInput)
	}
	return Range{From: f, To: t}, nil
}

func (r Range) end() time.Time { return r.To.AddDate(0, 0, 1) }

func statuses(includePending bool) []string {
	if includePending {
		return []string{"pending", "paid", "shipped", "completed"}
	}
	return []string{"paid", "shipped", "completed"}
}

type Summary struct {
	Orders   int     `json:"orders"`
	Revenue  int64   `json:"revenue_cents"`
	AvgOrder float64 `json:"avg_order_cents"`
}

type Day struct {
	Date    string `json:"date"`
	Orders  int    `json:"orders"`
	Revenue int64  `json:"revenue_cents"`
}

type Sales struct {
	Summary Summary `json:"summary"`
	Daily   []Day   `json:"daily"`
}

type TopProduct struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	QtySold   int64  `json:"qty_sold"`
	Revenue   int64  `json:"revenue_cents"`
}

type Service struct {
	DB postgres.Querier
}

func (s *Service) Sales(ctx context.Context, r Range, includePending bool) (Sales, error) {
	var out Sales
	st := statuses(includePending)
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(o.total_cents), 0)::bigint, ROUND(COALESCE(AVG(o.total_cents), 0), 2)::float8
		FROM orders o
		WHERE o.status = ANY($1) AND o.created_at >= $2 AND o.created_at < $3`,
		st, r.From, r.end()).Scan(&out.Summary.Orders, &out.Summary.Revenue, &out.Summary.AvgOrder)
	if err != nil {
		return Sales{}, fmt.Errorf("sales summary: %w", err)
	}

	rows, err := s.DB.Query(ctx, `
		SELECT to_char(date_trunc('day', o.created_at), 'YYYY-MM-DD'), COUNT(*), COALESCE(SUM(o.total_cents), 0)::bigint
		FROM orders o
		WHERE o.status = ANY($1) AND o.created_at >= $2 AND o.created_at < $3
		GROUP BY 1
		ORDER BY 1`, st, r.From, r.end())
	if err != nil {
		return Sales{}, fmt.Errorf("sales daily: %w", err)
	}
	defer rows.Close()
	out.Daily = []Day{}
	for rows.Next() {
		var d Day
		if err := rows.Scan(&d.Date, &d.Orders, &d.Revenue); err != nil {
			return Sales{}, err
		}
		out.Daily = append(out.Daily, d)
	}
	return out, rows.Err()
}

// TopProducts ranks products by revenue. limit is clamped to 1..100.
func (s *Service) TopProducts(ctx context.Context, r Range, includePending bool, limit int) ([]TopProduct, error) {
	switch {
	case limit <= 0:
		limit = 10
	case limit > 100:
		limit = 100
	}
	rows, err := s.DB.Query(ctx, `
		SELECT oi.product_id, COALESCE(p.name, ''), COALESCE(p.model, ''),
		       SUM(oi.qty)::bigint AS qty_sold, SUM(oi.qty * oi.price_cents)::bigint AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE o.status = ANY($1) AND o.created_at >= $2 AND o.created_at < $3
		GROUP BY oi.product_id, p.name, p.model
		ORDER BY revenue DESC
		LIMIT $4`, statuses(includePending), r.From, r.end(), limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()
	out := []TopProduct{}
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.Model, &tp.QtySold, &tp.Revenue); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
