package statuscache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *redisx.StatusCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := &redisx.StatusCache{RDB: rdb}
	return &Service{Cache: cache, Redis: rdb, ServiceName: "statuscache", Log: zap.NewNop()}, cache
}

func message(t *testing.T, eventID, eventType string, at time.Time, payload any) kafkago.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	v, err := json.Marshal(orders.Envelope{EventID: eventID, EventType: eventType, EventVersion: 1, OccurredAt: at, Payload: body})
	require.NoError(t, err)
	return kafkago.Message{Topic: "t", Key: []byte("o1"), Value: v}
}

func TestHandleEventTracksLatestStatus(t *testing.T) {
	s, cache := newService(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.HandleEvent(ctx, message(t, "e1", orders.EventOrderCreated, t0,
		orders.OrderCreatedPayload{OrderID: "o1", UserID: "u1", Status: orders.StatusPending})))
	require.NoError(t, s.HandleEvent(ctx, message(t, "e3", orders.EventPaymentStatusChanged, t0.Add(2*time.Second),
		orders.PaymentStatusChangedPayload{OrderID: "o1", Status: orders.PaymentVerified, OrderStatus: orders.StatusPaid})))
	// late, older event
	require.NoError(t, s.HandleEvent(ctx, message(t, "e2", orders.EventOrderStatusChanged, t0.Add(time.Second),
		orders.OrderStatusChangedPayload{OrderID: "o1", From: orders.StatusPaid, To: orders.StatusPending})))

	e, ok, err := cache.Get(ctx, "o1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "paid", e.Status)
	assert.Equal(t, "u1", e.UserID)
}

func TestHandleEventDedupsRedelivery(t *testing.T) {
	s, cache := newService(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m := message(t, "e9", orders.EventOrderStatusChanged, t0,
		orders.OrderStatusChangedPayload{OrderID: "o1", From: orders.StatusPending, To: orders.StatusPaid})
	require.NoError(t, s.HandleEvent(ctx, m))

	// overwrite behind the consumer's back; a redelivery must not win again
	_, err := cache.Put(ctx, "o1", redisx.StatusEntry{Status: "shipped", UpdatedAt: t0})
	require.NoError(t, err)
	require.NoError(t, s.HandleEvent(ctx, m))

	e, _, err := cache.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "shipped", e.Status)
}

func TestHandleEventDropsGarbage(t *testing.T) {
	s, cache := newService(t)
	ctx := context.Background()

	require.NoError(t, s.HandleEvent(ctx, kafkago.Message{Value: []byte("{not json")}))
	require.NoError(t, s.HandleEvent(ctx, message(t, "e1", "SomethingElse", time.Now(), map[string]string{})))
	_, ok, err := cache.Get(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, ok)
}
