package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsSettledTotal, jobAttemptSeconds, jobsExpiredTotal, jobsArchivedTotal) }

var jobsSettledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_settled_total",
		Help: "Job attempts settled, labeled by job name and outcome state.",
	},
	[]string{"name", "state"}, // 'completed', 'retry', 'failed'
)

var jobAttemptSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "job_attempt_seconds",
		Help:    "Duration of a single job handler attempt.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"name"},
)

var jobsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "jobs_expired_total",
	Help: "Active jobs forcibly expired by the reaper.",
})

var jobsArchivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "jobs_archived_total",
	Help: "Settled jobs moved to the archive table.",
})

func IncJobSettled(name, state string) {
	jobsSettledTotal.WithLabelValues(norm(name), norm(state)).Inc()
}

func ObserveJobAttempt(name string, seconds float64) {
	jobAttemptSeconds.WithLabelValues(norm(name)).Observe(seconds)
}

func AddJobsExpired(n int)  { jobsExpiredTotal.Add(float64(n)) }
func AddJobsArchived(n int) { jobsArchivedTotal.Add(float64(n)) }
