package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// alert fan-out pipeline.
type Metrics struct {
	ForecastsImported prometheus.Counter
	ImportDuration    prometheus.Histogram

	RegionBatchesPublished prometheus.Counter
	MessagesConsumed       *prometheus.CounterVec // labels: worker
	PoisonMessages         *prometheus.CounterVec // labels: worker
	WorkerRunning          *prometheus.GaugeVec   // labels: worker

	NotificationsPublished prometheus.Counter
	EligibleSubscribers    prometheus.Histogram

	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	SendRetries         prometheus.Counter
	TokenRefreshes      prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ForecastsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "forecasts_imported_total",
			Help:      "Total forecast values persisted by the importer.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wbgt_alert",
			Name:      "import_duration_seconds",
			Help:      "Duration of a complete forecast import run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RegionBatchesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "region_batches_published_total",
			Help:      "Total RegionBatch messages published by the partitioner.",
		}),
		MessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "messages_consumed_total",
			Help:      "Queue messages handled, by worker.",
		}, []string{"worker"}),
		PoisonMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "poison_messages_total",
			Help:      "Undecodable queue messages dropped, by worker.",
		}, []string{"worker"}),
		WorkerRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wbgt_alert",
			Name:      "worker_running",
			Help:      "1 while a queue worker loop is active.",
		}, []string{"worker"}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "notifications_published_total",
			Help:      "Per-subscriber notification messages published by the decider.",
		}),
		EligibleSubscribers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wbgt_alert",
			Name:      "eligible_subscribers",
			Help:      "Notify-eligible subscribers per region batch.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "notifications_sent_total",
			Help:      "Messages successfully delivered to the bot API.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "notifications_failed_total",
			Help:      "Deliveries that failed terminally.",
		}),
		SendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "send_retries_total",
			Help:      "Rate-limited send attempts that were retried.",
		}),
		TokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wbgt_alert",
			Name:      "token_refreshes_total",
			Help:      "Access-token exchanges performed.",
		}),
	}

	prometheus.MustRegister(
		m.ForecastsImported,
		m.ImportDuration,
		m.RegionBatchesPublished,
		m.MessagesConsumed,
		m.PoisonMessages,
		m.WorkerRunning,
		m.NotificationsPublished,
		m.EligibleSubscribers,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.SendRetries,
		m.TokenRefreshes,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ForecastsImported:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "forecasts_imported_total"}),
		ImportDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "wbgt_alert", Name: "import_duration_seconds"}),
		RegionBatchesPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "region_batches_published_total"}),
		MessagesConsumed:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "messages_consumed_total"}, []string{"worker"}),
		PoisonMessages:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "poison_messages_total"}, []string{"worker"}),
		WorkerRunning:          prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "wbgt_alert", Name: "worker_running"}, []string{"worker"}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "notifications_published_total"}),
		EligibleSubscribers:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "wbgt_alert", Name: "eligible_subscribers"}),
		NotificationsSent:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "notifications_sent_total"}),
		NotificationsFailed:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "notifications_failed_total"}),
		SendRetries:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "send_retries_total"}),
		TokenRefreshes:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wbgt_alert", Name: "token_refreshes_total"}),
	}
}
