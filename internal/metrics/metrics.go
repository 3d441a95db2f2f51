// Package metrics exposes prometheus collectors for the render pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors observed by the job coordinator.
type Metrics struct {
	RendersTotal    *prometheus.CounterVec
	RenderDuration  prometheus.Histogram
	OutputSizeBytes prometheus.Histogram
	RendersInFlight prometheus.Gauge
}

// New registers the render collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "motion",
			Name:      "renders_total",
			Help:      "Render jobs by terminal state.",
		}, []string{"status"}),
		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "motion",
			Name:      "render_duration_seconds",
			Help:      "Wall-clock time of successful render jobs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		OutputSizeBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "motion",
			Name:      "render_output_size_bytes",
			Help:      "Size of rendered MP4 files.",
			Buckets:   prometheus.ExponentialBuckets(1<<16, 4, 8),
		}),
		RendersInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "motion",
			Name:      "renders_in_flight",
			Help:      "Render jobs currently executing.",
		}),
	}
}

// ObserveSuccess records a completed render.
func (m *Metrics) ObserveSuccess(elapsedSeconds float64, sizeBytes int64) {
	m.RendersTotal.WithLabelValues("success").Inc()
	m.RenderDuration.Observe(elapsedSeconds)
	m.OutputSizeBytes.Observe(float64(sizeBytes))
}

// ObserveFailure records a failed render.
func (m *Metrics) ObserveFailure() {
	m.RendersTotal.WithLabelValues("failed").Inc()
}
