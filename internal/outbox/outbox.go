package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"time"
)

type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Insert must run on the transaction that made the change being announced.
func Insert(ctx context.Context, q postgres.Querier, rec Record) error {
	_, err := q.Exec(ctx, `INSERT INTO outbox(event_id, event_type, topic, key, payload) VALUES ($1, $2, $3, $4, $5)`,
		rec.EventID, rec.EventType, rec.Topic, rec.Key, rec.Payload)
	if err != nil {
		return fmt.Errorf("outbox insert %s: %w", rec.EventType, err)
	}
	return nil
}

// FetchPending locks up to limit unsent rows. SKIP LOCKED lets several relays
// share the table without publishing the same row twice.
func FetchPending(ctx context.Context, q postgres.Querier, limit int) ([]Record, error) {
	rows, err := q.Query(ctx, `
		SELECT id, event_id, event_type, topic, key, payload, created_at
		FROM outbox WHERE sent_at IS NULL
		ORDER BY id LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox fetch: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func MarkSent(ctx context.Context, q postgres.Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `UPDATE outbox SET sent_at=now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("outbox mark sent: %w", err)
	}
	return nil
}
