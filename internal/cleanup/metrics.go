package cleanup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cleanupObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetstore_cleanup_objects_total",
			Help: "Queue entries resolved by the deletion worker, by outcome.",
		},
		[]string{"outcome"},
	)

	cleanupRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetstore_cleanup_runs_total",
			Help: "Completed deletion worker runs.",
		},
	)

	queueRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetstore_cleanup_queue_remaining",
			Help: "Rows left in the deletion queue after the last worker run.",
		},
	)

	enqueuedDeletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetstore_enqueued_deletions_total",
			Help: "Rows written to the deletion queue.",
		},
	)

	enqueueFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetstore_enqueue_failures_total",
			Help: "Batched queue inserts that failed and were dropped.",
		},
	)
)

const (
	outcomeDeleted = "deleted"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)
