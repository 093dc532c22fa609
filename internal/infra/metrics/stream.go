package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(turnsTotal, synthLatencyMs) }

var turnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "interview_turns_total",
		Help: "Interview turns by outcome (completed/waited/cancelled/failed).",
	},
	[]string{"outcome"},
)

var synthLatencyMs = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "speech_synthesis_latency_ms",
	Help:    "Time to first byte of synthesized audio in milliseconds.",
	Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000},
})

func IncTurn(outcome string) { turnsTotal.WithLabelValues(norm(outcome)).Inc() }

func ObserveSynthesisLatency(ms int) { synthLatencyMs.Observe(float64(ms)) }
