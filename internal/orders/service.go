package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/outbox"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/tracing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"time"
)

// Service owns every write to orders and payments. Each mutation runs in one
// transaction and announces itself through the outbox in that same transaction.
type Service struct {
	DB          postgres.DB
	Ledger      *inventory.Ledger
	Metrics     *metrics.Shop
	Log         *zap.Logger
	ServiceName string
}

func (s *Service) emit(ctx context.Context, q postgres.Querier, topic, eventType, orderID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       tracing.TraceID(ctx),
		CorrelationID: orderID,
		Payload:       body,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return outbox.Insert(ctx, q, outbox.Record{
		EventID:   env.EventID,
		EventType: eventType,
		Topic:     topic,
		Key:       string(PartitionKey(orderID)),
		Payload:   b,
	})
}

// lockedOrder is the mutable part of an order row, read under FOR UPDATE.
type lockedOrder struct {
	ID            string
	UserID        string
	Status        Status
	StockDeducted bool
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (lockedOrder, error) {
	o := lockedOrder{ID: orderID}
	err := tx.QueryRow(ctx, `SELECT user_id, status, stock_deducted FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.UserID, &o.Status, &o.StockDeducted)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	if err != nil {
		return o, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return o, nil
}

// parseID maps malformed ids to NotFound; they can never match a row.
func parseID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %q: %w", kind, id, apperr.ErrNotFound)
	}
	return nil
}
