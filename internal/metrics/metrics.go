package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the booking service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	TxAttempts         *prometheus.CounterVec
	TxRetries          *prometheus.CounterVec
	TxOutcomes         *prometheus.CounterVec
	TxDuration         *prometheus.HistogramVec
	BookingsCreated    *prometheus.CounterVec
	ApprovalsResolved  *prometheus.CounterVec
	AnalyticsForwarded prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TxAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "tx_attempts_total",
			Help:      "Transaction attempts by transaction name",
		}, []string{"tx"}),
		TxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "tx_retries_total",
			Help:      "Transaction retries by name and failure kind",
		}, []string{"tx", "kind"}),
		TxOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "tx_outcomes_total",
			Help:      "Final transaction outcomes; kind is ok on commit",
		}, []string{"tx", "kind"}),
		TxDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Name:      "tx_duration_seconds",
			Help:      "Wall time of a logical transaction including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tx"}),
		BookingsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "bookings_created_total",
			Help:      "Committed booking creations by type",
		}, []string{"type"}),
		ApprovalsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "approvals_resolved_total",
			Help:      "Committed approval resolutions by type and decision",
		}, []string{"type", "decision"}),
		AnalyticsForwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "analytics_forwarded_total",
			Help:      "Analytics events delivered to the downstream sink",
		}),
	}
}

func (m *Metrics) TxAttempt(name string) {
	if m == nil {
		return
	}
	m.TxAttempts.WithLabelValues(name).Inc()
}

func (m *Metrics) TxRetry(name, kind string) {
	if m == nil {
		return
	}
	m.TxRetries.WithLabelValues(name, kind).Inc()
}

func (m *Metrics) TxDone(name, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.TxOutcomes.WithLabelValues(name, kind).Inc()
	m.TxDuration.WithLabelValues(name).Observe(seconds)
}

func (m *Metrics) BookingCreated(bookingType string) {
	if m == nil {
		return
	}
	m.BookingsCreated.WithLabelValues(bookingType).Inc()
}

func (m *Metrics) ApprovalResolved(bookingType, decision string) {
	if m == nil {
		return
	}
	m.ApprovalsResolved.WithLabelValues(bookingType, decision).Inc()
}

func (m *Metrics) Forwarded(n int) {
	if m == nil {
		return
	}
	m.AnalyticsForwarded.Add(float64(n))
}
