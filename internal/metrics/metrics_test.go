package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilShopIsNoop(t *testing.T) {
	var m *Shop
	assert.NotPanics(t, func() {
		m.Checkout("OK")
		m.StockMoved("deduct", 3)
		m.Transition("pending", "paid")
		m.PaymentReviewed("verified")
		m.OutboxPublished(2)
		m.CartPruned(1)
	})
}

func TestShopCounters(t *testing.T) {
	m := NewShop(prometheus.NewRegistry())

	m.StockMoved("deduct", 3)
	m.StockMoved("deduct", 0)
	m.StockMoved("restore", 2)
	m.OutboxPublished(5)
	m.Checkout("OUT_OF_STOCK")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.stockMovements.WithLabelValues("deduct")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockMovements.WithLabelValues("restore")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.outboxSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("OUT_OF_STOCK")))
}
