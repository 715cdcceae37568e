// Package metrics defines the Prometheus counters and histograms exposed by
// the aggregator (SPEC_FULL.md §6, §10).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the registered collectors so components take one struct
// rather than a handful of package-level globals.
type Metrics struct {
	ContributionsTotal *prometheus.CounterVec
	RoundDuration      prometheus.Histogram
	SubmitDuration     prometheus.Histogram
	RoundsTotal        *prometheus.CounterVec
	ActiveMembers      prometheus.Gauge
}

// New registers and returns the aggregator's metric set against a fresh
// registry, so unit tests never collide with a process-global default
// registry.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		ContributionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pool_contributions_total",
			Help: "Contributions received, partitioned by validation result.",
		}, []string{"result"}),
		RoundDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_round_duration_seconds",
			Help:    "Wall-clock duration of a full round, collecting through rotation.",
			Buckets: prometheus.DefBuckets,
		}),
		SubmitDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_submit_duration_seconds",
			Help:    "Duration of the submit-and-confirm chain call.",
			Buckets: prometheus.DefBuckets,
		}),
		RoundsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pool_rounds_total",
			Help: "Rounds completed, partitioned by outcome.",
		}, []string{"outcome"}),
		ActiveMembers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pool_active_members",
			Help: "Number of members counted in the current round's pool account.",
		}),
	}
	return m, reg
}

// ObserveRound records a completed round's duration against its outcome
// label ("submitted", "irregular_reset", "fatal").
func (m *Metrics) ObserveRound(outcome string, d time.Duration) {
	m.RoundsTotal.WithLabelValues(outcome).Inc()
	m.RoundDuration.Observe(d.Seconds())
}

// ObserveSubmit records the duration of one submit-and-confirm call.
func (m *Metrics) ObserveSubmit(d time.Duration) {
	m.SubmitDuration.Observe(d.Seconds())
}

// SetActiveMembers records the current round's member count.
func (m *Metrics) SetActiveMembers(n float64) {
	m.ActiveMembers.Set(n)
}

// ObserveContribution records one contribution's validation result
// ("accepted", "duplicate", "invalid_signature", "below_min_difficulty",
// "invalid_digest").
func (m *Metrics) ObserveContribution(result string) {
	m.ContributionsTotal.WithLabelValues(result).Inc()
}

// Handler returns the HTTP handler the metrics server mounts.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
