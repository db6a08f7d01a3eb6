// Package metrics exposes Prometheus collectors for the broker. Scraped via
// the API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_enqueued_total",
		Help: "Jobs submitted to the ready queue.",
	})

	JobsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_scheduled_total",
		Help: "Jobs submitted with a future start time.",
	})

	JobsPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_promoted_total",
		Help: "Scheduled jobs moved to the ready queue by the sweeper.",
	})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Jobs finished successfully.",
	})

	JobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_retried_total",
		Help: "Jobs pushed back to the ready queue after a failure.",
	})

	JobsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_recovered_total",
		Help: "Jobs reclaimed from dead workers' pending lists.",
	})

	JobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_dropped_total",
		Help: "Jobs discarded because their payload was missing.",
	})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_in_flight",
		Help: "Handlers currently running on this worker.",
	})
)
