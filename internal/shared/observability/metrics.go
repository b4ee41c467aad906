package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nyein_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nyein_stage_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyein_builds_total",
		Help: "Total number of pipeline runs by operation and outcome.",
	}, []string{"operation", "outcome"})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nyein_graph_nodes",
		Help: "Number of source files in the most recent dependency graph.",
	})

	GraphCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyein_graph_cycles_total",
		Help: "Total number of import cycles reported.",
	})

	SkippedSpecifiersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyein_skipped_specifiers_total",
		Help: "Total number of relative specifiers that could not be resolved.",
	})

	CollisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyein_collisions_total",
		Help: "Total number of colliding top-level names by resolution mode.",
	}, []string{"mode"})

	CompilerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nyein_compiler_seconds",
		Help:    "Time spent in external compiler invocations.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"module"})

	StripCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyein_strip_cache_hits_total",
		Help: "Stripped modules served from the content-hash cache.",
	})

	StripCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyein_strip_cache_misses_total",
		Help: "Stripped modules computed because the cache had no entry.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyein_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyein_watcher_throttled_total",
		Help: "Rebuilds delayed by the watch-mode rate limiter.",
	})
)
