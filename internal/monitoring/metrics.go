package monitoring

import (
	"net/http"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pteroctrl"

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	automationRuns     prometheus.Counter
	automationDuration prometheus.Histogram
	automationActions  *prometheus.CounterVec
	pollErrors         prometheus.Counter
	pollDuration       prometheus.Histogram
	serversByStatus    *prometheus.GaugeVec
	serverPlayers      *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		automationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "runs_total",
			Help:      "Number of automation checks performed.",
		}),
		automationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "run_duration_seconds",
			Help:      "Duration of automation checks.",
			Buckets:   prometheus.DefBuckets,
		}),
		automationActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "actions_total",
			Help:      "Automation actions executed by kind and outcome.",
		}, []string{"action", "outcome"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "errors_total",
			Help:      "Failed resource fetches from the panel.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full resource polling cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		serversByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "servers",
			Help:      "Registered servers by status.",
		}, []string{"status"}),
		serverPlayers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Connected players by category.",
		}, []string{"category"}),
	}

	m.registry.MustRegister(
		m.automationRuns,
		m.automationDuration,
		m.automationActions,
		m.pollErrors,
		m.pollDuration,
		m.serversByStatus,
		m.serverPlayers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAutomationRun records one evaluate+execute cycle.
func (m *Metrics) ObserveAutomationRun(result models.AutomationRunResult, took time.Duration) {
	m.automationRuns.Inc()
	m.automationDuration.Observe(took.Seconds())
	for _, r := range result.Results {
		outcome := "success"
		if !r.Success {
			outcome = "failed"
		}
		m.automationActions.WithLabelValues(r.ActionKind, outcome).Inc()
	}
}

// ObservePoll records a finished polling cycle and the resulting registry state.
func (m *Metrics) ObservePoll(servers []models.Server, failures int, took time.Duration) {
	m.pollErrors.Add(float64(failures))
	m.pollDuration.Observe(took.Seconds())

	m.serversByStatus.Reset()
	for _, status := range []string{models.StatusOnline, models.StatusOffline, models.StatusStarting, models.StatusStopping, models.StatusSuspended} {
		m.serversByStatus.WithLabelValues(status).Set(0)
	}
	players := make(map[string]int, len(models.Categories))
	for _, s := range servers {
		m.serversByStatus.WithLabelValues(s.Status).Inc()
		players[s.Category] += s.Players()
	}
	for _, category := range models.Categories {
		m.serverPlayers.WithLabelValues(category).Set(float64(players[category]))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
