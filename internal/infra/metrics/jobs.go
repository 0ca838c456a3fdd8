package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal) }

var jobRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "job_runs_total",
		Help: "Scheduled job runs, labeled by job and outcome.",
	},
	[]string{"job", "outcome"}, // 'completed', 'failed', 'skipped'
)

func IncJobRun(job, outcome string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(outcome)).Inc()
}
