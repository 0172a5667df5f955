// Package cleanup owns the deferred-deletion protocol: the gateway that turns
// metadata deletions into durable queue rows, the worker that drains those rows
// against object storage with a bounded attempt budget, and the read-only queue
// statistics.
package cleanup

import (
	"context"

	"assetstore/internal/models"
)

// Inserter persists new queue rows. A single call must be a single batched
// write regardless of how many requests it carries.
type Inserter interface {
	InsertPendingDeletions(ctx context.Context, reqs []models.DeletionRequest) (int64, error)
}

// Queue is the subset of the queue repository the worker mutates.
// Update and Delete of an id that no longer exists must not fail.
type Queue interface {
	OldestPendingDeletions(ctx context.Context, limit, maxAttempts int) ([]models.PendingDeletion, error)
	UpdatePendingDeletion(ctx context.Context, id int64, attempts int, lastError string) error
	DeletePendingDeletion(ctx context.Context, id int64) error
	CountPendingDeletions(ctx context.Context) (int64, error)
}

type StatsSource interface {
	PendingDeletionStats(ctx context.Context) (models.QueueStats, error)
}

// ObjectDeleter is the object-storage delete contract used by the worker.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}
