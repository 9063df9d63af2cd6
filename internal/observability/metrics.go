// Package observability holds the Prometheus metrics and the ops HTTP server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quakewatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	QuakesFetched prometheus.Counter
	FeedErrors    prometheus.Counter
	Decisions     *prometheus.CounterVec // labels: decision={ignore,record_only,alert}
	Records       *prometheus.CounterVec // labels: outcome={recorded,already_exists,error}
	DispatchSteps *prometheus.CounterVec // labels: channel={render,social,messaging,bus}, outcome={ok,error,skipped}

	LogForwardDropped prometheus.Counter
	LogForwardFailed  prometheus.Counter

	CycleDuration   prometheus.Histogram
	LastHeartbeat   prometheus.Gauge
	PipelineRunning prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		QuakesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quakes_fetched_total",
			Help:      help("Total quakes parsed from the upstream feed."),
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      help("Total failed feed fetches or unparseable documents."),
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      help("Classifier decisions by outcome."),
		}, []string{"decision"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      help("Dedup gate results."),
		}, []string{"outcome"}),
		DispatchSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_steps_total",
			Help:      help("Alert fan-out steps by channel and outcome."),
		}, []string{"channel", "outcome"}),
		LogForwardDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_forward_dropped_total",
			Help:      help("Log records dropped because the forwarding queue was full."),
		}),
		LogForwardFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_forward_failed_total",
			Help:      help("Log records the webhook rejected or never received."),
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      help("Duration of one poll-classify-dispatch cycle."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastHeartbeat: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_heartbeat_timestamp_seconds",
			Help:      help("Unix time of the last heartbeat write."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the pipeline is active, 0 when shut down."),
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.QuakesFetched, m.FeedErrors, m.Decisions, m.Records, m.DispatchSteps,
		m.LogForwardDropped, m.LogForwardFailed,
		m.CycleDuration, m.LastHeartbeat, m.PipelineRunning,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

// Step records one dispatch step outcome.
func (m *Metrics) Step(channel, outcome string) {
	if m == nil {
		return
	}
	m.DispatchSteps.WithLabelValues(channel, outcome).Inc()
}
