package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imsweather_cache_lookups_total",
			Help: "Cache lookups by kind and result (memory, durable, miss)",
		},
		[]string{"kind", "result"},
	)

	CacheProducerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imsweather_cache_producer_errors_total",
			Help: "Producer failures on cache miss, never cached",
		},
		[]string{"kind"},
	)

	CacheDurableErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imsweather_cache_durable_errors_total",
			Help: "Durable tier I/O errors treated as misses",
		},
		[]string{"op"},
	)

	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imsweather_upstream_calls_total",
			Help: "Total upstream IMS API calls",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imsweather_upstream_latency_seconds",
			Help:    "Upstream IMS API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ForecastsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imsweather_forecasts_resolved_total",
			Help: "Forecast resolutions by period and final source",
		},
		[]string{"period", "source"},
	)

	FeedItemsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imsweather_feed_items_stored_total",
			Help: "Forecast feed items stored per region",
		},
		[]string{"region"},
	)
)
