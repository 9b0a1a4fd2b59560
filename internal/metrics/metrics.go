// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coach"

// Import outcome labels.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRejected = "rejected"

	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"

	ResultInserted = "inserted"
	ResultExisting = "existing"
)

// Metrics holds the import collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	imports        *prometheus.CounterVec
	rows           *prometheus.CounterVec
	timesWritten   *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	activeImports  prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Import calls by dataset and final status.",
		}, []string{"dataset", "status"}),
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Source rows seen by imports, by outcome.",
		}, []string{"dataset", "outcome"}),
		timesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "times_written_total",
			Help:      "SwimmerTime upserts by whether a new row was inserted.",
		}, []string{"dataset", "result"}),
		importDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of completed imports.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"dataset"}),
		activeImports: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "imports_active",
			Help:      "Imports currently holding a limiter slot.",
		}),
	}
}

// ImportStarted increments the active gauge. Pair with ImportFinished.
func (m *Metrics) ImportStarted() {
	if m == nil {
		return
	}
	m.activeImports.Inc()
}

// ImportFinished records one finished import call.
func (m *Metrics) ImportFinished(dataset, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.activeImports.Dec()
	m.imports.WithLabelValues(dataset, status).Inc()
	if status == StatusSuccess {
		m.importDuration.WithLabelValues(dataset).Observe(d.Seconds())
	}
}

// ImportRejected records an import that never started, for example because
// every limiter slot was busy.
func (m *Metrics) ImportRejected(dataset string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(dataset, StatusRejected).Inc()
}

// Rows records processed and skipped row counts of one import.
func (m *Metrics) Rows(dataset string, processed, skipped int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(dataset, OutcomeProcessed).Add(float64(processed))
	m.rows.WithLabelValues(dataset, OutcomeSkipped).Add(float64(skipped))
}

// TimesWritten records SwimmerTime upsert outcomes of one import.
func (m *Metrics) TimesWritten(dataset string, inserted, existing int) {
	if m == nil {
		return
	}
	m.timesWritten.WithLabelValues(dataset, ResultInserted).Add(float64(inserted))
	m.timesWritten.WithLabelValues(dataset, ResultExisting).Add(float64(existing))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
