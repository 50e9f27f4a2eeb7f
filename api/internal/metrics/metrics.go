// Package metrics holds the Prometheus collectors of the bot. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	captures     *prometheus.CounterVec
	extractions  *prometheus.CounterVec
	answers      *prometheus.CounterVec
	batchRuns    prometheus.Counter
	batchSeconds prometheus.Histogram
	swept        prometheus.Counter
	sessions     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screenbot", Name: "captures_total",
			Help: "Screen captures by mode and result.",
		}, []string{"mode", "result"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screenbot", Name: "extractions_total",
			Help: "Text extraction calls by result.",
		}, []string{"result"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screenbot", Name: "answers_total",
			Help: "Answer generation calls by result.",
		}, []string{"result"}),
		batchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "screenbot", Name: "batch_runs_total",
			Help: "Completed batch pipeline runs.",
		}),
		batchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "screenbot", Name: "batch_duration_seconds",
			Help:    "Wall time of batch pipeline runs.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "screenbot", Name: "swept_artifacts_total",
			Help: "Artifacts released by the expiry sweep.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "screenbot", Name: "sessions",
			Help: "Live stacking sessions.",
		}),
	}
	m.Registry.MustRegister(
		m.captures, m.extractions, m.answers,
		m.batchRuns, m.batchSeconds, m.swept, m.sessions,
		prometheus.NewGoCollector(),
	)
	return m
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Capture counts one capture; mode is "single" or "slot".
func (m *Metrics) Capture(mode string, ok bool) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(mode, result(ok)).Inc()
}

func (m *Metrics) Extraction(ok bool) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Answer(ok bool) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) BatchRun(d time.Duration) {
	if m == nil {
		return
	}
	m.batchRuns.Inc()
	m.batchSeconds.Observe(d.Seconds())
}

func (m *Metrics) Swept(n int, live int) {
	if m == nil {
		return
	}
	m.swept.Add(float64(n))
	m.sessions.Set(float64(live))
}

func (m *Metrics) Sessions(live int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(live))
}
