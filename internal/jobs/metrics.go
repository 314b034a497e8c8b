package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecoreport",
			Name:      "job_runs_total",
			Help:      "Total background job runs",
		},
		[]string{"job"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecoreport",
			Name:      "job_errors_total",
			Help:      "Total background job errors",
		},
		[]string{"job"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecoreport",
			Name:      "job_duration_seconds",
			Help:      "Background job duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	sessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoreport",
		Name:      "sessions_evicted_total",
		Help:      "Expired report sessions removed by the sweeper",
	})
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobDuration, sessionsEvicted)
}
