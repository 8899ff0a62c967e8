package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "order_stock"

const (
	FlowSingle = "single"
	FlowBulk   = "bulk"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	orders    *prometheus.CounterVec
	lockWait  prometheus.Histogram
	batchSize prometheus.Histogram
	rollbacks *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		orders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders processed, by flow and outcome.",
		}, []string{"flow", "outcome"}),
		lockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_acquire_seconds",
			Help:      "Time spent acquiring all product locks of one call.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_batch_orders",
			Help:      "Number of orders in one bulk upload.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rollbacks_total",
			Help:      "Stock snapshots restored after a late failure.",
		}, []string{"flow"}),
	}
}

func (m *Metrics) ObserveOrders(flow, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.orders.WithLabelValues(flow, outcome).Add(float64(n))
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}

func (m *Metrics) IncRollback(flow string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(flow).Inc()
}
