// Package metrics exposes scan, job and process metrics for Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ process.Tracker = (*Metrics)(nil)

// Metrics holds collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	scansTotal       *prometheus.CounterVec
	processesRunning prometheus.Gauge
	processExits     *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns a process-wide Metrics instance.
func Default() *Metrics {
	defaultOnce.Do(func() { defaultMetrics = New() })
	return defaultMetrics
}

// New creates Metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcraft_jobs_total",
				Help: "Scan jobs finished, by tool and final state",
			},
			[]string{"tool", "state"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconcraft_job_duration_seconds",
				Help:    "Wall time of scan jobs",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
			},
			[]string{"tool"},
		),
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcraft_scans_total",
				Help: "Scans finished, by terminal status",
			},
			[]string{"status"},
		),
		processesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reconcraft_processes_running",
			Help: "Tool subprocesses currently alive",
		}),
		processExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcraft_process_exits_total",
				Help: "Tool subprocess exits, by exit class",
			},
			[]string{"class"},
		),
	}

	m.registry.MustRegister(m.jobsTotal, m.jobDuration, m.scansTotal, m.processesRunning, m.processExits)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveJob records a finished job.
func (m *Metrics) ObserveJob(tool string, state types.JobState, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(tool, string(state)).Inc()
	if d > 0 {
		m.jobDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// ObserveScan records a finished scan.
func (m *Metrics) ObserveScan(status types.Status) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ProcessStarted() {
	if m == nil {
		return
	}
	m.processesRunning.Inc()
}

func (m *Metrics) ProcessExited(exitCode int) {
	if m == nil {
		return
	}
	m.processesRunning.Dec()
	m.processExits.WithLabelValues(exitClass(exitCode)).Inc()
}

func exitClass(code int) string {
	switch code {
	case 0:
		return "ok"
	case process.ExitTimedOut:
		return "timeout"
	case process.ExitNotFound:
		return "not_found"
	case process.ExitAborted:
		return "aborted"
	default:
		return "error"
	}
}
