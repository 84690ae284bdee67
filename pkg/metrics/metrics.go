package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_tile_loads_total",
		Help: "Total number of tile loads by source and outcome (loaded, default, skipped)",
	}, []string{"source", "outcome"})

	DiskCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_disk_cache_hits_total",
		Help: "Total number of tile payloads served from the on-disk cache",
	}, []string{"source"})

	DiskCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_disk_cache_misses_total",
		Help: "Total number of on-disk cache misses, including version mismatches",
	}, []string{"source"})

	CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_cache_invalidations_total",
		Help: "Total number of cache entries removed after a decode failure",
	}, []string{"source"})

	RemoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_remote_fetches_total",
		Help: "Total number of remote tile fetches by source and result",
	}, []string{"source", "result"})

	RemoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geodata_remote_fetch_latency_seconds",
		Help:    "Latency of remote tile fetches in seconds, including the cache write",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"source"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_rate_limited_total",
		Help: "Total number of 429 responses received from remote endpoints",
	}, []string{"source"})

	ResponseCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodata_response_cache_hits_total",
		Help: "Total number of encoded responses served from the response cache",
	})

	ResponseCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodata_response_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	ValidTiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geodata_valid_elevation_tiles",
		Help: "Number of entries in the loaded elevation tile manifest",
	})
)
