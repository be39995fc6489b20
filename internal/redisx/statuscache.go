package redisx

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"strconv"
	"time"
)

// StatusEntry is one cached order status. UserID is empty when the owner is
// not known yet (only OrderCreated and the Postgres fallback carry it).
type StatusEntry struct {
	Status    string    `json:"status"`
	UserID    string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// putIfNewer keeps the cache monotonic when events arrive out of order.
// The owner is recorded even from an older event; it never changes.
var putIfNewer = redis.NewScript(`
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[1], 'user', ARGV[4])
end
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'ts', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// StatusCache is the read-through cache behind GET /orders/{id}/status.
type StatusCache struct {
	RDB redis.Cmdable
	TTL time.Duration
}

func (c *StatusCache) ttl() time.Duration {
	if c.TTL <= 0 {
		return TTLStatusCache
	}
	return c.TTL
}

// Put stores e unless the cache already holds a newer entry. It reports
// whether the entry was written.
func (c *StatusCache) Put(ctx context.Context, orderID string, e StatusEntry) (bool, error) {
	n, err := putIfNewer.Run(ctx, c.RDB, []string{fmt.Sprintf(KeyOrderStatus, orderID)},
		e.Status, e.UpdatedAt.UnixMilli(), c.ttl().Milliseconds(), e.UserID).Int()
	if err != nil {
		return false, fmt.Errorf("status cache put: %w", err)
	}
	return n == 1, nil
}

// Get returns ok=false on a miss.
func (c *StatusCache) Get(ctx context.Context, orderID string) (e StatusEntry, ok bool, err error) {
	m, err := c.RDB.HGetAll(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil {
		return e, false, fmt.Errorf("status cache get: %w", err)
	}
	if m["status"] == "" {
		return e, false, nil
	}
	ms, _ := strconv.ParseInt(m["ts"], 10, 64)
	return StatusEntry{Status: m["status"], UserID: m["user"], UpdatedAt: time.UnixMilli(ms).UTC()}, true, nil
}
