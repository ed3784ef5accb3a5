package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the shell engine.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Command routing metrics, labeled by route (builtin, foreground,
	// background, pty, pty-input, probe, user-switch, rejected).
	CommandsTotal *prometheus.CounterVec

	// Process metrics
	JobsActive       prometheus.Gauge
	PTYSessionsTotal prometheus.Counter
	PTYActive        prometheus.Gauge

	// Output metrics
	OutputLines prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector registered on the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handterm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handterm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handterm_commands_total",
				Help: "Total number of dispatched command lines by route",
			},
			[]string{"route"},
		),
		JobsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "handterm_background_jobs_active",
				Help: "Number of tracked background processes",
			},
		),
		PTYSessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "handterm_pty_sessions_total",
				Help: "Total number of PTY sessions started",
			},
		),
		PTYActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "handterm_pty_sessions_active",
				Help: "Whether a PTY session is currently open (0 or 1)",
			},
		),
		OutputLines: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "handterm_output_lines_total",
				Help: "Total number of lines committed to the output log",
			},
		),
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "handterm_uptime_seconds",
				Help: "Engine uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// RecordCommand increments the command counter for a route. Safe on a nil
// receiver so components can run without metrics in tests.
func (m *Metrics) RecordCommand(route string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(route).Inc()
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}
