package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Sampler metrics
	SamplesTotal          prometheus.Counter
	AdapterFailures       *prometheus.CounterVec
	SnapshotWriteFailures prometheus.Counter
	RollupsTotal          prometheus.Counter

	// Alerting metrics
	AlertsEmitted *prometheus.CounterVec

	// Event subscription metrics
	EventsConsumed *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec

	// Realtime client metrics
	ConnectedClients  prometheus.Gauge
	BroadcastsDropped prometheus.Counter
	HistoricalQueries *prometheus.CounterVec
)

// Init initializes all metrics and registers them with a dedicated registry.
// It is safe to call more than once.
func Init() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		SamplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callpulse_samples_total",
			Help: "Total number of conversation metric samples taken",
		})

		AdapterFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callpulse_adapter_failures_total",
			Help: "Metric adapter read failures that fell back to a default",
		}, []string{"metric"})

		SnapshotWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callpulse_snapshot_write_failures_total",
			Help: "Failed best-effort snapshot archive writes",
		})

		RollupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callpulse_business_rollups_total",
			Help: "Total number of business metric rollups computed",
		})

		AlertsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callpulse_alerts_emitted_total",
			Help: "Performance alerts emitted by severity",
		}, []string{"severity"})

		EventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callpulse_events_consumed_total",
			Help: "Pub/sub events consumed by channel",
		}, []string{"channel"})

		EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callpulse_events_dropped_total",
			Help: "Malformed pub/sub events dropped by channel",
		}, []string{"channel"})

		ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callpulse_connected_clients",
			Help: "Number of currently connected realtime clients",
		})

		BroadcastsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callpulse_broadcasts_dropped_total",
			Help: "Broadcast messages dropped because a client could not accept them",
		})

		HistoricalQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callpulse_historical_queries_total",
			Help: "Historical range queries served by range name",
		}, []string{"range"})

		registry.MustRegister(
			SamplesTotal,
			AdapterFailures,
			SnapshotWriteFailures,
			RollupsTotal,
			AlertsEmitted,
			EventsConsumed,
			EventsDropped,
			ConnectedClients,
			BroadcastsDropped,
			HistoricalQueries,
		)
	})
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
