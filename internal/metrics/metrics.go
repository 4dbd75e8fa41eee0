// Package metrics holds the Prometheus instrumentation of the feature
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// File outcomes, used as the status label.
const (
	StatusOK         = "ok"
	StatusStructural = "structural"
	StatusParse      = "parse"
	StatusEmpty      = "empty"
	StatusError      = "error"
)

// Metrics is the set of collectors exported by the pipeline and the API.
type Metrics struct {
	registry *prometheus.Registry

	// FilesTotal counts processed input files by mode and outcome.
	FilesTotal *prometheus.CounterVec
	// RowsTotal counts dataset rows produced by mode.
	RowsTotal *prometheus.CounterVec
	// SessionSeconds observes the time spent reading and folding a session.
	SessionSeconds *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ndt7spectra_files_total",
			Help: "Total number of processed NDT7 session files",
		}, []string{"mode", "status"}),
		RowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ndt7spectra_rows_total",
			Help: "Total number of dataset rows produced",
		}, []string{"mode"}),
		SessionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ndt7spectra_session_seconds",
			Help:    "Time to read and extract the features of one session (in seconds)",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"mode"}),
	}
	m.registry.MustRegister(m.FilesTotal, m.RowsTotal, m.SessionSeconds)
	return m
}

// ObserveFile records the outcome of one input file.
func (m *Metrics) ObserveFile(mode, status string, rows int, elapsed time.Duration) {
	m.FilesTotal.WithLabelValues(mode, status).Inc()
	if rows > 0 {
		m.RowsTotal.WithLabelValues(mode).Add(float64(rows))
	}
	m.SessionSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
