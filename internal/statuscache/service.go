package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service keeps the Redis order-status cache in step with the order topics.
type Service struct {
	Cache       *redisx.StatusCache
	Redis       redis.Cmdable
	ServiceName string
	Log         *zap.Logger
}

// HandleEvent: dipasang sebagai handler consumer untuk semua topic order.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: retry tidak akan menolong
		s.Log.Error("drop undecodable event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	// 2) status target per event type
	orderID, userID, status, err := statusOf(env)
	if err != nil {
		s.Log.Error("drop bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if status == "" {
		return nil // ignore
	}

	// 3) dedup via Redis (pakai event_id)
	first, err := redisx.FirstSeen(ctx, s.Redis, s.ServiceName, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	wrote, err := s.Cache.Put(ctx, orderID, redisx.StatusEntry{Status: string(status), UserID: userID, UpdatedAt: env.OccurredAt})
	if err != nil {
		// lepas dedup key supaya redelivery bisa proses ulang
		_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)).Err()
		return err
	}
	s.Log.Debug("status cached", zap.String("order_id", orderID), zap.String("status", string(status)),
		zap.String("event_type", env.EventType), zap.Bool("written", wrote))
	return nil
}

// statusOf returns the order, its owner when the event carries it, and the
// order status the event implies.
func statusOf(env orders.Envelope) (string, string, orders.Status, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		return p.OrderID, p.UserID, p.Status, err
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		return p.OrderID, "", p.To, err
	case orders.EventPaymentStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.PaymentStatusChangedPayload](env.Payload)
		return p.OrderID, "", p.OrderStatus, err
	}
	return "", "", "", nil
}
