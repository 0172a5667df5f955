package cleanup

import (
	"context"
	"fmt"
	"sort"

	"assetstore/internal/models"
)

type Reporter struct {
	source StatsSource
}

func NewReporter(source StatsSource) *Reporter {
	return &Reporter{source: source}
}

// Stats returns the queue snapshot with the attempt histogram ordered by
// attempt count.
func (r *Reporter) Stats(ctx context.Context) (models.QueueStats, error) {
	const op = "cleanup.Reporter.Stats"

	stats, err := r.source.PendingDeletionStats(ctx)
	if err != nil {
		return models.QueueStats{}, fmt.Errorf("%s: %w", op, err)
	}
	if stats.ByAttempts == nil {
		stats.ByAttempts = []models.AttemptBucket{}
	}
	sort.Slice(stats.ByAttempts, func(i, j int) bool {
		return stats.ByAttempts[i].Attempts < stats.ByAttempts[j].Attempts
	})
	return stats, nil
}
