package redisx

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
)

const inFlight = "-"

// ErrInFlight means the same idempotency key is being processed right now.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Idempotency remembers which order a checkout key produced. Postgres stays
// the source of truth; this only short-circuits client retries.
type Idempotency struct {
	RDB redis.Cmdable
}

// Begin claims the key. When the key already finished, it returns the stored
// order id and done=true; the caller must not run the checkout again.
func (i *Idempotency) Begin(ctx context.Context, userID, key string) (orderID string, done bool, err error) {
	k := fmt.Sprintf(KeyIdemCheckout, userID, key)
	ok, err := i.RDB.SetNX(ctx, k, inFlight, TTLIdemInFlight).Result()
	if err != nil {
		return "", false, fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return "", false, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET, claim again
		return i.Begin(ctx, userID, key)
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency get: %w", err)
	}
	if v == inFlight {
		return "", false, ErrInFlight
	}
	return v, true, nil
}

// Finish stores the produced order id for TTLIdempotency.
func (i *Idempotency) Finish(ctx context.Context, userID, key, orderID string) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), orderID, TTLIdempotency).Err()
}

// Abort releases the claim so the client may retry with the same key.
func (i *Idempotency) Abort(ctx context.Context, userID, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Err()
}
