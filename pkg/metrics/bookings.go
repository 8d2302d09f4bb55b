package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BookingMetrics covers the saga orchestrator. A nil *BookingMetrics is valid
// and records nothing.
type BookingMetrics struct {
	sagas                *prometheus.CounterVec
	cancellations        prometheus.Counter
	upstreamCalls        *prometheus.HistogramVec
	compensationFailures prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	f := promauto.With(reg)
	return &BookingMetrics{
		sagas: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "sagas_total",
			Help:      "Create-booking sagas by final result.",
		}, []string{"result"}),
		cancellations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "cancellations_total",
			Help:      "Bookings cancelled by their owner.",
		}),
		upstreamCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "inventory_call_duration_seconds",
			Help:      "Inventory gateway call latency by operation and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		compensationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "compensation_failures_total",
			Help:      "Releases that failed during compensation and were queued for retry.",
		}),
	}
}

func (m *BookingMetrics) IncSaga(result string) {
	if m == nil {
		return
	}
	m.sagas.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) IncCancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *BookingMetrics) ObserveUpstream(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.upstreamCalls.WithLabelValues(operation, result).Observe(d.Seconds())
}

func (m *BookingMetrics) IncCompensationFailure() {
	if m == nil {
		return
	}
	m.compensationFailures.Inc()
}
