package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(matchDecisionsTotal, matchSweepSeconds) }

var matchDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "match_decisions_total",
		Help: "Bot match sweep outcomes (deferred/accepted/rejected).",
	},
	[]string{"outcome"},
)

var matchSweepSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "match_sweep_seconds",
	Help:    "Duration of one full pending-match sweep.",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
})

func IncMatchDecision(outcome string) { matchDecisionsTotal.WithLabelValues(norm(outcome)).Inc() }

func ObserveMatchSweep(seconds float64) { matchSweepSeconds.Observe(seconds) }
