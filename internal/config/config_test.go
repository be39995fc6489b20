package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PG_LOCK_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.PGLockTimeout)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, int32(8), cfg.PGMaxConns)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("PG_LOCK_TIMEOUT", "750ms")
	t.Setenv("OUTBOX_BATCH", "not-a-number")
	t.Setenv("STATUSCACHE_WORKERS", "16")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, cfg.PGLockTimeout)
	assert.Equal(t, 100, cfg.OutboxBatch)
	assert.Equal(t, 16, cfg.StatusCacheWorkers)
}
