package cleanup

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"assetstore/internal/models"
)

// Gateway queues object deletions for metadata records that were just removed.
// It never talks to object storage.
type Gateway struct {
	queue Inserter
}

func NewGateway(queue Inserter) *Gateway {
	return &Gateway{queue: queue}
}

// Enqueue writes one queue row per request with a non-empty storage path, in a
// single batched insert, and returns how many rows were queued. An insert
// failure is logged and reported as zero: the metadata deletion that led here
// has already happened and must not be failed by cleanup bookkeeping.
func (g *Gateway) Enqueue(ctx context.Context, reqs []models.DeletionRequest) int {
	batch := make([]models.DeletionRequest, 0, len(reqs))
	for _, r := range reqs {
		p := strings.TrimSpace(r.StoragePath)
		if p == "" {
			continue
		}
		batch = append(batch, models.DeletionRequest{StoragePath: p, ClientID: r.ClientID})
	}
	if len(batch) == 0 {
		return 0
	}

	n, err := g.queue.InsertPendingDeletions(ctx, batch)
	if err != nil {
		enqueueFailures.Inc()
		log.WithFields(log.Fields{
			"count": len(batch),
			"first": batch[0].StoragePath,
		}).Errorf("failed to queue file deletions, objects may be orphaned: %v", err)
		return 0
	}

	enqueuedDeletions.Add(float64(n))
	log.WithField("count", n).Debug("queued file deletions")
	return int(n)
}
