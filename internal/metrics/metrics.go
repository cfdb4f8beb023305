package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "upstream_requests_total",
		Help:      "Total catalog fetch attempts against the GraphQL upstream by result status.",
	}, []string{"status"})

	UpstreamRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "upstream_request_duration_seconds",
		Help:      "GraphQL upstream fetch duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "cache_hits_total",
		Help:      "Total number of catalog reads served from a fresh snapshot.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "cache_misses_total",
		Help:      "Total number of catalog reads that required a refresh.",
	})

	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "refresh_total",
		Help:      "Catalog refresh outcomes by resulting snapshot origin.",
	}, []string{"origin"})

	ProductsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "catalog",
		Name:      "products",
		Help:      "Products in the current snapshot by category.",
	}, []string{"category"})

	IndexTokens = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalog",
		Name:      "index_tokens",
		Help:      "Distinct tokens in the current search index.",
	})

	SnapshotStoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "snapshot_store_errors_total",
		Help:      "Snapshot store failures by store and operation.",
	}, []string{"store", "op"})

	WebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalog",
		Name:      "ws_clients",
		Help:      "Connected catalog event WebSocket clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		RefreshTotal,
		ProductsTotal,
		IndexTokens,
		SnapshotStoreErrorsTotal,
		WebSocketClients,
	)
}
