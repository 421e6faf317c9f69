// Package metrics exposes Prometheus counters, gauges and histograms for the
// trading engine: bar throughput, signal/trade counts, open PnL, broker and
// market-data round trips, and cache hit ratios.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the engine publishes.
type Registry struct {
	BarsProcessed   *prometheus.CounterVec
	SignalsFired    prometheus.Counter
	TradesOpened    *prometheus.CounterVec
	TradesClosed    *prometheus.CounterVec
	OpenPnLPoints   prometheus.Gauge
	DailyPnLPoints  prometheus.Gauge
	StateDuration   *prometheus.HistogramVec
	BrokerLatency   *prometheus.HistogramVec
	BrokerErrors    *prometheus.CounterVec
	FeedReconnects  *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CircuitState    *prometheus.GaugeVec
}

// NewRegistry builds and registers every metric against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across repeated runs.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BarsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lvnengine_bars_processed_total",
			Help: "Total number of bars processed by symbol.",
		}, []string{"symbol"}),

		SignalsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lvnengine_signals_fired_total",
			Help: "Total number of retest signals fired.",
		}),

		TradesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lvnengine_trades_opened_total",
			Help: "Total number of trades entered by direction.",
		}, []string{"direction"}),

		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lvnengine_trades_closed_total",
			Help: "Total number of trades closed by exit reason.",
		}, []string{"reason"}),

		OpenPnLPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lvnengine_open_pnl_points",
			Help: "Unrealized PnL in points for the current open position, 0 if flat.",
		}),

		DailyPnLPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lvnengine_daily_pnl_points",
			Help: "Realized PnL in points for the current trading day.",
		}),

		StateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lvnengine_state_duration_bars",
			Help:    "Bars spent in each trading-state-machine state before transition.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}, []string{"state"}),

		BrokerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lvnengine_broker_request_seconds",
			Help:    "Broker REST request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		BrokerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lvnengine_broker_errors_total",
			Help: "Total broker request failures by endpoint.",
		}, []string{"endpoint"}),

		FeedReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lvnengine_feed_reconnects_total",
			Help: "Total market-data feed reconnect attempts by symbol.",
		}, []string{"symbol"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lvnengine_cache_hits_total",
			Help: "Total cache hits by tier.",
		}, []string{"tier"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lvnengine_cache_misses_total",
			Help: "Total cache misses by tier.",
		}, []string{"tier"}),

		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lvnengine_circuit_state",
			Help: "Circuit breaker state by venue: 0=closed, 1=half-open, 2=open.",
		}, []string{"venue"}),
	}

	reg.MustRegister(
		r.BarsProcessed, r.SignalsFired, r.TradesOpened, r.TradesClosed,
		r.OpenPnLPoints, r.DailyPnLPoints, r.StateDuration,
		r.BrokerLatency, r.BrokerErrors, r.FeedReconnects,
		r.CacheHits, r.CacheMisses, r.CircuitState,
	)
	return r
}

// Handler returns a Prometheus scrape endpoint that serves whatever gatherer
// collects, typically the *prometheus.Registry the metrics were registered
// against.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
