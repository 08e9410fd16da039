// v1
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	samplesAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homesim",
		Name:      "telemetry_samples_appended_total",
		Help:      "Rows appended to the telemetry logs, by domain.",
	}, []string{"domain"})

	pollErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homesim",
		Name:      "telemetry_poll_errors_total",
		Help:      "Failed poll attempts, by domain.",
	}, []string{"domain"})

	pollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homesim",
		Name:      "telemetry_poll_duration_seconds",
		Help:      "Wall time of one poll attempt, by domain.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"domain"})

	activeLoggers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "homesim",
		Name:      "telemetry_active_loggers",
		Help:      "Background pollers currently running.",
	})
)

func init() {
	registry.MustRegister(samplesAppended, pollErrors, pollDuration, activeLoggers)
}

// ObserveSampleAppended counts one appended row for the given domain
// ("power" or "env").
func ObserveSampleAppended(domain string) {
	samplesAppended.WithLabelValues(domain).Inc()
}

// ObservePollError counts one failed poll attempt.
func ObservePollError(domain string) {
	pollErrors.WithLabelValues(domain).Inc()
}

// ObservePollDuration records how long one poll attempt took.
func ObservePollDuration(domain string, d time.Duration) {
	pollDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// LoggerStarted and LoggerStopped track the live poller count.
func LoggerStarted() { activeLoggers.Inc() }
func LoggerStopped() { activeLoggers.Dec() }

// Handler exposes the process registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
