// Package metrics counts compilation runs. A run is a one-shot process, so the
// registry is written to a node-exporter textfile instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one process. The zero value is not usable.
type Metrics struct {
	Registry *prometheus.Registry

	specsCompiled   *prometheus.CounterVec
	actionsCompiled *prometheus.CounterVec
	compileErrors   *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		specsCompiled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deployspec_specs_compiled_total",
				Help: "Total number of specs compiled per task",
			},
			[]string{"task"},
		),
		actionsCompiled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deployspec_actions_compiled_total",
				Help: "Total number of actions generated per task and kind",
			},
			[]string{"task", "kind"},
		),
		compileErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deployspec_compile_errors_total",
				Help: "Total number of failed compilations per task and error type",
			},
			[]string{"task", "type"},
		),
		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deployspec_compile_duration_seconds",
				Help:    "Duration of spec compilation in seconds per task",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
	}
	m.Registry.MustRegister(m.specsCompiled, m.actionsCompiled, m.compileErrors, m.compileDuration)
	return m
}

// ObserveCompile records one successful task compilation.
func (m *Metrics) ObserveCompile(task string, kinds []string, took time.Duration) {
	if m == nil {
		return
	}
	m.specsCompiled.WithLabelValues(task).Inc()
	m.compileDuration.WithLabelValues(task).Observe(took.Seconds())
	for _, k := range kinds {
		m.actionsCompiled.WithLabelValues(task, k).Inc()
	}
}

// ObserveError records a failed task compilation. An empty errType is reported as "unknown".
func (m *Metrics) ObserveError(task, errType string) {
	if m == nil {
		return
	}
	if errType == "" {
		errType = "unknown"
	}
	m.compileErrors.WithLabelValues(task, errType).Inc()
}

// WriteTextfile writes the registry in the text exposition format. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
