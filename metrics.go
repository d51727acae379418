// Prometheus instrumentation for rotation and retention.
//
// Metrics are optional. A rotator without WithMetrics records nothing;
// every helper below is safe on a nil *Metrics.
package rotor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds per-stream rotation metrics. All vectors are labelled by
// stream, the base name of the stream directory.
type Metrics struct {
	// Records counts records signalled through Increment or Write.
	Records *prometheus.CounterVec

	// Rotations counts segment rotations, labelled by what fired.
	Rotations *prometheus.CounterVec

	// Pruned counts segments deleted by retention.
	Pruned *prometheus.CounterVec

	// FlushErrors counts failed flushes, including background ones.
	FlushErrors *prometheus.CounterVec

	// Epoch is the active epoch of each stream.
	Epoch *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Records: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rotor",
				Name:      "records_total",
				Help:      "Records written to the active segment.",
			},
			[]string{"stream"},
		),
		Rotations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rotor",
				Name:      "rotations_total",
				Help:      "Segment rotations by trigger (records, time, manual).",
			},
			[]string{"stream", "trigger"},
		),
		Pruned: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rotor",
				Name:      "segments_pruned_total",
				Help:      "Segments deleted because they left the retention window.",
			},
			[]string{"stream"},
		),
		FlushErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rotor",
				Name:      "flush_errors_total",
				Help:      "Failed segment flushes.",
			},
			[]string{"stream"},
		),
		Epoch: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rotor",
				Name:      "epoch",
				Help:      "Active epoch of the stream.",
			},
			[]string{"stream"},
		),
	}
}

func (m *Metrics) record(stream string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(stream).Inc()
}

func (m *Metrics) rotated(stream, trigger string) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(stream, trigger).Inc()
}

func (m *Metrics) pruned(stream string) {
	if m == nil {
		return
	}
	m.Pruned.WithLabelValues(stream).Inc()
}

func (m *Metrics) flushFailed(stream string) {
	if m == nil {
		return
	}
	m.FlushErrors.WithLabelValues(stream).Inc()
}

// epoch is exported as a float; values past 2^53 lose precision.
func (m *Metrics) epoch(stream string, epoch uint64) {
	if m == nil {
		return
	}
	m.Epoch.WithLabelValues(stream).Set(float64(epoch))
}
