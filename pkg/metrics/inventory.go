package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roomsaga"

// InventoryMetrics covers the room lock store and the reaper. A nil
// *InventoryMetrics is valid and records nothing.
type InventoryMetrics struct {
	holds         *prometheus.CounterVec
	confirms      *prometheus.CounterVec
	releases      prometheus.Counter
	reaped        prometheus.Counter
	sweepDuration prometheus.Histogram
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	f := promauto.With(reg)
	return &InventoryMetrics{
		holds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "hold_requests_total",
			Help:      "Hold requests by outcome.",
		}, []string{"outcome"}),
		confirms: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "hold_confirmations_total",
			Help:      "Hold confirmations by outcome.",
		}, []string{"outcome"}),
		releases: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "hold_releases_total",
			Help:      "Locks moved to CANCELLED by an explicit release.",
		}),
		reaped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "holds_reaped_total",
			Help:      "Expired PENDING locks cancelled by the reaper.",
		}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "reaper_sweep_duration_seconds",
			Help:      "Duration of a single reaper sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *InventoryMetrics) IncHold(outcome string) {
	if m == nil {
		return
	}
	m.holds.WithLabelValues(outcome).Inc()
}

func (m *InventoryMetrics) IncConfirm(outcome string) {
	if m == nil {
		return
	}
	m.confirms.WithLabelValues(outcome).Inc()
}

func (m *InventoryMetrics) AddReleased(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.releases.Add(float64(n))
}

func (m *InventoryMetrics) ObserveSweep(reaped int, d time.Duration) {
	if m == nil {
		return
	}
	m.reaped.Add(float64(reaped))
	m.sweepDuration.Observe(d.Seconds())
}
