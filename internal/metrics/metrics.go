// Package metrics defines the Prometheus instruments for roster search.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Match modes and search outcomes used as label values.
const (
	ModeNameOnly = "name_only"
	ModeFull     = "full"

	OutcomeOK          = "ok"
	OutcomeInvalidRole = "invalid_role"
	OutcomeError       = "error"
)

// SearchMetrics holds all Prometheus metrics for user search.
type SearchMetrics struct {
	Searches *prometheus.CounterVec
	Results  prometheus.Histogram
	Duration *prometheus.HistogramVec
}

// NewSearchMetrics creates the metrics and registers them on reg.
// Tests pass a fresh prometheus.NewRegistry() so repeated construction does
// not collide on the default registry.
func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	factory := promauto.With(reg)
	return &SearchMetrics{
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "user_search",
			Name:      "searches_total",
			Help:      "Total number of user searches by match mode and outcome.",
		}, []string{"mode", "outcome"}), // mode: name_only, full; outcome: ok, invalid_role, error
		Results: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roster",
			Subsystem: "user_search",
			Name:      "results",
			Help:      "Number of users returned per successful search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roster",
			Subsystem: "user_search",
			Name:      "duration_seconds",
			Help:      "Time spent serving a search, by match mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

// Observe records one finished search. A nil receiver records nothing.
func (m *SearchMetrics) Observe(mode, outcome string, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(mode, outcome).Inc()
	m.Duration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		m.Results.Observe(float64(results))
	}
}
