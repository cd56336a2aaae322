// Package metrics exposes Prometheus instrumentation for the flow engine.
// The collectors live on a dedicated registry so the web driver can serve
// them without picking up unrelated process collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics implements engine.MetricsRecorder on top of Prometheus collectors.
// A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runActive     prometheus.Gauge
	stages        *prometheus.CounterVec
	actions       *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the standard Go
// runtime collector, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gantry",
			Subsystem: "run",
			Name:      "completed_total",
			Help:      "Total number of completed flow runs",
		}, []string{"status"}), // status: passed, failed

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gantry",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Flow run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),

		runActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gantry",
			Subsystem: "run",
			Name:      "active",
			Help:      "Whether a flow run is currently executing (0 or 1)",
		}),

		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gantry",
			Subsystem: "stage",
			Name:      "completed_total",
			Help:      "Total number of completed stages",
		}, []string{"status"}),

		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gantry",
			Subsystem: "stage",
			Name:      "actions_total",
			Help:      "Total number of executed actions",
		}, []string{"status"}), // status: success, failure

		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gantry",
			Subsystem: "stage",
			Name:      "verifications_total",
			Help:      "Total number of evaluated verifications",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.runs,
		m.runDuration,
		m.runActive,
		m.stages,
		m.actions,
		m.verifications,
	)
	return m
}

// Registry returns the underlying Prometheus registry for the /metrics
// endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted(string) {
	if m == nil {
		return
	}
	m.runActive.Set(1)
}

// RunCompleted records a finished run with its terminal status and duration.
func (m *Metrics) RunCompleted(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runActive.Set(0)
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}

// StageCompleted records a stage's terminal status.
func (m *Metrics) StageCompleted(status string) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(status).Inc()
}

// ActionExecuted records one action outcome.
func (m *Metrics) ActionExecuted(success bool) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(outcome(success)).Inc()
}

// VerificationEvaluated records one verification outcome.
func (m *Metrics) VerificationEvaluated(passed bool) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome(passed)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
