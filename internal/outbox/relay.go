package outbox

import (
	"context"
	"github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafkago.Header) error
}

// Relay moves committed outbox rows to Kafka. Delivery is at-least-once:
// a crash between publish and commit republishes the batch, consumers dedup
// on event_id.
type Relay struct {
	DB       postgres.DB
	Pub      Publisher
	Batch    int
	Interval time.Duration
	Metrics  *metrics.Shop
	Log      *zap.Logger
}

func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil && ctx.Err() == nil {
				log.Error("outbox flush", zap.Error(err))
			}
			// batch penuh -> langsung lanjut tanpa nunggu tick
			if err != nil || n < r.batch() {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Flush publishes one batch and returns how many rows were marked sent.
// Rows published before a failure are still marked sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var sent []int64
	var pubErr error
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		recs, err := FetchPending(ctx, tx, r.batch())
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := r.Pub.Publish(ctx, rec.Topic, []byte(rec.Key), rec.Payload, kafka.EventHeaders(rec.EventType, 1)...); err != nil {
				pubErr = err
				break
			}
			sent = append(sent, rec.ID)
		}
		return MarkSent(ctx, tx, sent)
	})
	if err != nil {
		return 0, err
	}
	r.Metrics.OutboxPublished(len(sent))
	return len(sent), pubErr
}

func (r *Relay) batch() int {
	if r.Batch <= 0 {
		return 100
	}
	return r.Batch
}
