package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shop"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Shop holds the business counters. A nil *Shop is valid and records nothing.
type Shop struct {
	checkouts      *prometheus.CounterVec
	stockMovements *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	paymentReviews *prometheus.CounterVec
	outboxSent     prometheus.Counter
	cartPruned     prometheus.Counter
}

func NewShop(reg prometheus.Registerer) *Shop {
	m := &Shop{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkouts_total",
			Help: "Checkout attempts by result code.",
		}, []string{"result"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_movements_units_total",
			Help: "Units moved by the inventory ledger.",
		}, []string{"direction"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_transitions_total",
			Help: "Order status transitions.",
		}, []string{"from", "to"}),
		paymentReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payment_reviews_total",
			Help: "Payment status changes by resulting status.",
		}, []string{"status"}),
		outboxSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_published_total",
			Help: "Outbox records published to Kafka.",
		}),
		cartPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cart_lines_pruned_total",
			Help: "Cart lines removed because the product became unpurchasable.",
		}),
	}
	reg.MustRegister(m.checkouts, m.stockMovements, m.transitions, m.paymentReviews, m.outboxSent, m.cartPruned)
	return m
}

func (m *Shop) Checkout(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

func (m *Shop) StockMoved(direction string, units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockMovements.WithLabelValues(direction).Add(float64(units))
}

func (m *Shop) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Shop) PaymentReviewed(status string) {
	if m == nil {
		return
	}
	m.paymentReviews.WithLabelValues(status).Inc()
}

func (m *Shop) OutboxPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboxSent.Add(float64(n))
}

func (m *Shop) CartPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cartPruned.Add(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
