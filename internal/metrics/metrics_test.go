package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ms-booking/internal/metrics"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.TxAttempt("create_hotel_booking")
		m.TxRetry("create_hotel_booking", "serialization")
		m.TxDone("create_hotel_booking", "ok", 0.1)
		m.BookingCreated("hotel")
		m.ApprovalResolved("hotel", "approved")
		m.Forwarded(3)
	})
}

func TestCountersByLabel(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.TxAttempt("resolve_booking_approval")
	m.TxAttempt("resolve_booking_approval")
	m.TxRetry("resolve_booking_approval", "serialization")
	m.TxDone("resolve_booking_approval", "ok", 0.02)
	m.BookingCreated("flight")
	m.ApprovalResolved("flight", "rejected")
	m.Forwarded(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TxAttempts.WithLabelValues("resolve_booking_approval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxRetries.WithLabelValues("resolve_booking_approval", "serialization")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxOutcomes.WithLabelValues("resolve_booking_approval", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingsCreated.WithLabelValues("flight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ApprovalsResolved.WithLabelValues("flight", "rejected")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.AnalyticsForwarded))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TxDuration))
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
