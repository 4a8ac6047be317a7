package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	ValidationsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryshield_validations_total",
			Help: "Total number of values validated",
		},
		[]string{"result"}, // allowed | blocked
	)

	BlockedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryshield_blocked_total",
			Help: "Blocked inputs by attack type and severity",
		},
		[]string{"attack_type", "severity"},
	)

	CacheHitsTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "queryshield_cache_hits_total",
			Help: "Validation verdicts served from the hash cache",
		},
	)

	LearnerPromotionsTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "queryshield_learner_promotions_total",
			Help: "Structural indicators promoted to blocking rules",
		},
	)

	QueryBuildsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryshield_query_builds_total",
			Help: "Successful query builds by operation",
		},
		[]string{"operation", "table"},
	)

	QueryBuildFailuresTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryshield_query_build_failures_total",
			Help: "Rejected query builds by security error code",
		},
		[]string{"code"},
	)
)

type MetricsConfig struct {
	EnableProcessMetrics bool // Go process collector (off in embedded use)
	EnablePerTable       bool // Per-table build metrics (higher cardinality)
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		EnableProcessMetrics: false,
		EnablePerTable:       true,
	}
}

var Config MetricsConfig

func Initialize(cfg MetricsConfig) {
	Config = cfg
	if cfg.EnableProcessMetrics {
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Registry exposes the wrapped registry so the embedding application can
// mount its own scrape handler.
func Registry() *prometheus.Registry {
	return registry
}
