package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/tracing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"strings"
)

type PaymentChange struct {
	PaymentID     string        `json:"payment_id"`
	OrderID       string        `json:"order_id"`
	Status        PaymentStatus `json:"status"`
	OrderFrom     Status        `json:"order_from"`
	OrderStatus   Status        `json:"order_status"`
	StockDeducted bool          `json:"stock_deducted"`
}

// SetPaymentStatus records an admin review of a payment proof and drags the
// order along: verified makes any order paid (deducting once, which also
// revives a canceled order), rejected sends a paid or pending order back to
// pending and returns any deducted stock. A rejection never touches shipped
// or completed orders.
func (s *Service) SetPaymentStatus(ctx context.Context, paymentID, status string) (ch PaymentChange, err error) {
	ctx, span := tracing.Start(ctx, "orders.SetPaymentStatus",
		attribute.String("payment.id", paymentID), attribute.String("payment.status", status))
	defer func() { tracing.End(span, err) }()

	st, err := ParsePaymentStatus(status)
	if err != nil {
		return ch, err
	}
	if err := parseID("payment", paymentID); err != nil {
		return ch, err
	}

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var orderID string
		err := tx.QueryRow(ctx, `SELECT order_id FROM payments WHERE id=$1 FOR UPDATE`, paymentID).Scan(&orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("payment %s: %w", paymentID, apperr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from := o.Status

		if _, err := tx.Exec(ctx, `UPDATE payments SET status=$2, reviewed_at=now() WHERE id=$1`, paymentID, st); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		switch st {
		case PaymentVerified:
			if err := s.syncStock(ctx, tx, &o, true); err != nil {
				return err
			}
			o.Status = StatusPaid
		case PaymentRejected:
			switch {
			case o.Status == StatusPaid && o.StockDeducted:
				if err := s.syncStock(ctx, tx, &o, false); err != nil {
					return err
				}
				o.Status = StatusPending
			case o.Status == StatusPaid || o.Status == StatusPending:
				o.Status = StatusPending
			}
		}

		if o.Status != from {
			if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, o.Status); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
			if err := s.emit(ctx, tx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
				OrderID: orderID, From: from, To: o.Status, StockDeducted: o.StockDeducted, Cause: "payment",
			}); err != nil {
				return err
			}
		}
		ch = PaymentChange{PaymentID: paymentID, OrderID: orderID, Status: st, OrderFrom: from, OrderStatus: o.Status, StockDeducted: o.StockDeducted}
		return s.emit(ctx, tx, TopicPaymentStatusChanged, EventPaymentStatusChanged, orderID, PaymentStatusChangedPayload{
			PaymentID: paymentID, OrderID: orderID, Status: st, OrderStatus: o.Status,
		})
	})
	if err != nil {
		return PaymentChange{}, err
	}
	s.Metrics.PaymentReviewed(string(st))
	if ch.OrderFrom != ch.OrderStatus {
		s.Metrics.Transition(string(ch.OrderFrom), string(ch.OrderStatus))
	}
	logging.FromContext(ctx, s.Log).Info("payment reviewed", zap.String("payment_id", paymentID),
		zap.String("status", string(st)), zap.String("order_id", ch.OrderID), zap.String("order_status", string(ch.OrderStatus)))
	return ch, nil
}

// UploadPayment creates or replaces the payment proof of the user's order.
// Any earlier review is discarded: the payment is pending again.
func (s *Service) UploadPayment(ctx context.Context, userID, orderID, proofRef string) (p Payment, err error) {
	ctx, span := tracing.Start(ctx, "orders.UploadPayment",
		attribute.String("user.id", userID), attribute.String("order.id", orderID))
	defer func() { tracing.End(span, err) }()

	if strings.TrimSpace(proofRef) == "" {
		return p, fmt.Errorf("proof reference is required: %w", apperr.ErrInvalidInput)
	}
	if err := parseID("order", orderID); err != nil {
		return p, err
	}

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var owner string
		var orderStatus Status
		err := tx.QueryRow(ctx, `SELECT user_id, status FROM orders WHERE id=$1`, orderID).Scan(&owner, &orderStatus)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != userID) {
			return fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO payments(id, order_id, status, proof_ref) VALUES ($1,$2,$3,$4)
			ON CONFLICT (order_id) DO UPDATE
			SET status=EXCLUDED.status, proof_ref=EXCLUDED.proof_ref, uploaded_at=now(), reviewed_at=NULL
			RETURNING id, order_id, status, proof_ref, uploaded_at, reviewed_at`,
			uuid.NewString(), orderID, PaymentPending, proofRef).
			Scan(&p.ID, &p.OrderID, &p.Status, &p.ProofRef, &p.UploadedAt, &p.ReviewedAt)
		if err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		return s.emit(ctx, tx, TopicPaymentStatusChanged, EventPaymentStatusChanged, orderID, PaymentStatusChangedPayload{
			PaymentID: p.ID, OrderID: orderID, Status: p.Status, OrderStatus: orderStatus,
		})
	})
	if err != nil {
		return Payment{}, err
	}
	logging.FromContext(ctx, s.Log).Info("payment uploaded", zap.String("order_id", orderID), zap.String("payment_id", p.ID))
	return p, nil
}
