// Package metrics exposes the Prometheus instruments for the
// acquisition pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set bundles every instrument so components can share one wiring.
type Set struct {
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	SourceAttempts      *prometheus.CounterVec
	SynthFallbacks      prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotefeed_cache_hits_total",
			Help: "Fetches served from the TTL cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotefeed_cache_misses_total",
			Help: "Fetches that fell through to the source chain.",
		}),
		SourceAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quotefeed_source_attempts_total",
			Help: "Individual source attempts by outcome.",
		}, []string{"source", "outcome"}),
		SynthFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotefeed_synthetic_fallbacks_total",
			Help: "Requests answered by the synthesizer after exhaustion.",
		}),
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quotefeed_active_subscriptions",
			Help: "Currently polling quote subscriptions.",
		}),
	}
}
