// Package metrics holds the Prometheus instrumentation for the lookup
// layer. A nil *Set is valid everywhere and counts nothing, so callers
// never need to guard their increments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the lookup-layer counters.
type Set struct {
	lookups   *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	malformed prometheus.Counter
}

// NewSet creates and registers the counters on reg. Pass
// prometheus.DefaultRegisterer for the usual global registry.
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutstash",
			Name:      "lookups_total",
			Help:      "Cache lookups by resolution state (found, not_found, not_cached).",
		}, []string{"state"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutstash",
			Name:      "store_fallbacks_total",
			Help:      "Store fallback queries by outcome (ok, error, rejected).",
		}, []string{"outcome"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutstash",
			Name:      "malformed_values_total",
			Help:      "Cached values that failed typed decoding and were refetched.",
		}),
	}
	reg.MustRegister(s.lookups, s.fallbacks, s.malformed)
	return s
}

// Lookup counts one cache lookup with the given resolution state.
func (s *Set) Lookup(state string) {
	if s == nil {
		return
	}
	s.lookups.WithLabelValues(state).Inc()
}

// Fallback counts one store fallback with the given outcome.
func (s *Set) Fallback(outcome string) {
	if s == nil {
		return
	}
	s.fallbacks.WithLabelValues(outcome).Inc()
}

// Malformed counts one undecodable cached value.
func (s *Set) Malformed() {
	if s == nil {
		return
	}
	s.malformed.Inc()
}
