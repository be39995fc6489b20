package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/tracing"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type StatusChange struct {
	OrderID       string  `json:"order_id"`
	From          Status  `json:"from"`
	To            Status  `json:"to"`
	StockDeducted bool    `json:"stock_deducted"`
	TrackingNo    *string `json:"tracking_no,omitempty"`
}

// SetStatus is the admin status change. Moving to paid deducts stock once;
// moving to canceled gives it back. A nil trackingNo keeps the stored one.
func (s *Service) SetStatus(ctx context.Context, orderID, status string, trackingNo *string) (ch StatusChange, err error) {
	ctx, span := tracing.Start(ctx, "orders.SetStatus",
		attribute.String("order.id", orderID), attribute.String("order.status", status))
	defer func() { tracing.End(span, err) }()

	to, err := ParseStatus(status)
	if err != nil {
		return ch, err
	}
	if err := parseID("order", orderID); err != nil {
		return ch, err
	}

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		// urutan lock sama dengan payment coupler: payment dulu, baru order
		var paymentID string
		err := tx.QueryRow(ctx, `SELECT id FROM payments WHERE order_id=$1 FOR UPDATE`, orderID).Scan(&paymentID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock payment: %w", err)
		}
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%s -> %s: %w", o.Status, to, apperr.ErrIllegalTransition)
		}

		switch to {
		case StatusPaid:
			err = s.syncStock(ctx, tx, &o, true)
		case StatusCanceled:
			err = s.syncStock(ctx, tx, &o, false)
		}
		if err != nil {
			return err
		}

		// tracking_no kosong = pertahankan nilai lama, bukan menghapusnya
		if err := tx.QueryRow(ctx, `
			UPDATE orders SET status=$2, tracking_no=COALESCE($3, tracking_no), updated_at=now()
			WHERE id=$1 RETURNING tracking_no`, orderID, to, trackingNo).Scan(&ch.TrackingNo); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		ch = StatusChange{OrderID: orderID, From: o.Status, To: to, StockDeducted: o.StockDeducted, TrackingNo: ch.TrackingNo}
		return s.emit(ctx, tx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
			OrderID: orderID, From: ch.From, To: to, StockDeducted: ch.StockDeducted, TrackingNo: ch.TrackingNo, Cause: "admin",
		})
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientStock) {
			logging.FromContext(ctx, s.Log).Warn("status change refused", zap.String("order_id", orderID),
				zap.String("to", string(to)), zap.Error(err))
		}
		return StatusChange{}, err
	}
	if ch.From != ch.To {
		s.Metrics.Transition(string(ch.From), string(ch.To))
	}
	logging.FromContext(ctx, s.Log).Info("order status changed", zap.String("order_id", orderID),
		zap.String("from", string(ch.From)), zap.String("to", string(ch.To)), zap.Bool("stock_deducted", ch.StockDeducted))
	return ch, nil
}
