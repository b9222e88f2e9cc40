package datastore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the store's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	writes        *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
	quarantined   *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	conflicts     prometheus.Counter
}

// NewMetrics creates the store collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_writes_total",
				Help: "Total number of collection writes",
			},
			[]string{"collection", "result"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_write_duration_seconds",
				Help:    "Duration of atomic collection writes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
		quarantined: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_quarantined_total",
				Help: "Total number of corrupt collection files moved aside",
			},
			[]string{"collection"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "store_queue_depth",
				Help: "Operations queued or running per collection",
			},
			[]string{"collection"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timetable_conflicts_total",
				Help: "Total number of rejected stale timetable saves",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.writes, m.writeDuration, m.quarantined, m.queueDepth, m.conflicts)
	}

	return m
}

func (m *Metrics) observeWrite(collection string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(collection, result).Inc()
	m.writeDuration.WithLabelValues(collection).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeQuarantine(collection string) {
	if m == nil {
		return
	}
	m.quarantined.WithLabelValues(collection).Inc()
}

func (m *Metrics) setQueueDepth(collection string, depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(collection).Set(float64(depth))
}

// ObserveConflict counts one rejected versioned save.
func (m *Metrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
