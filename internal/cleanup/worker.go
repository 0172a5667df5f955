package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"assetstore/internal/models"
	"assetstore/internal/objectstore"
)

type WorkerOption func(*Worker)

// WithConcurrency sets how many queue entries are processed in parallel.
// The default of 1 processes entries strictly in queue order.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithDeleteTimeout bounds each object-storage delete call.
func WithDeleteTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.deleteTimeout = d
		}
	}
}

// Worker drains one bounded batch of the deletion queue per Run.
type Worker struct {
	queue         Queue
	store         ObjectDeleter
	concurrency   int
	deleteTimeout time.Duration
}

func NewWorker(queue Queue, store ObjectDeleter, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:         queue,
		store:         store,
		concurrency:   1,
		deleteTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type outcome int

const (
	deleted outcome = iota
	failed
	skipped
)

// Run selects up to BatchSize entries below the attempt budget, oldest first,
// and resolves each one independently. It returns an error only when the batch
// cannot be selected or the queue cannot be counted afterwards.
func (w *Worker) Run(ctx context.Context, opts models.CleanupOptions) (models.CleanupSummary, error) {
	const op = "cleanup.Worker.Run"

	opts = opts.Normalize()
	var summary models.CleanupSummary

	entries, err := w.queue.OldestPendingDeletions(ctx, opts.BatchSize, opts.MaxAttempts)
	if err != nil {
		return summary, fmt.Errorf("%s: select batch: %w", op, err)
	}

	var mu sync.Mutex
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		summary.Processed++
		switch o {
		case deleted:
			summary.Deleted++
		case failed:
			summary.Failed++
		case skipped:
			summary.Skipped++
		}
	}

	if w.concurrency <= 1 {
		for _, entry := range entries {
			record(w.process(ctx, entry, opts.MaxAttempts))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(w.concurrency)
		for _, entry := range entries {
			g.Go(func() error {
				record(w.process(ctx, entry, opts.MaxAttempts))
				return nil
			})
		}
		_ = g.Wait()
	}

	remaining, err := w.queue.CountPendingDeletions(ctx)
	if err != nil {
		return summary, fmt.Errorf("%s: count queue: %w", op, err)
	}
	summary.RemainingInQueue = remaining

	cleanupRuns.Inc()
	queueRemaining.Set(float64(remaining))

	log.WithFields(log.Fields{
		"processed": summary.Processed,
		"deleted":   summary.Deleted,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"remaining": summary.RemainingInQueue,
	}).Info("file cleanup run finished")

	return summary, nil
}

func (w *Worker) process(ctx context.Context, entry models.PendingDeletion, maxAttempts int) (res outcome) {
	logger := log.WithFields(log.Fields{
		"queue_id":  entry.ID,
		"file_path": entry.FilePath,
		"client_id": entry.ClientID,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic while deleting file: %v", r)
			res = w.fail(ctx, logger, entry, maxAttempts, fmt.Errorf("panic: %v", r))
		}
		cleanupObjects.WithLabelValues(outcomeLabel(res)).Inc()
	}()

	err := w.deleteObject(ctx, entry.FilePath)
	if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		return w.fail(ctx, logger, entry, maxAttempts, err)
	}

	if err := w.queue.DeletePendingDeletion(ctx, entry.ID); err != nil {
		// the object is gone; a leftover row resolves as not-found next run
		logger.Errorf("file deleted but queue row could not be removed: %v", err)
	}
	logger.Debug("deleted file")
	return deleted
}

func (w *Worker) deleteObject(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, w.deleteTimeout)
	defer cancel()
	return w.store.Delete(ctx, key)
}

func (w *Worker) fail(ctx context.Context, logger *log.Entry, entry models.PendingDeletion, maxAttempts int, cause error) outcome {
	attempts := entry.Attempts + 1
	lastError := TruncateError(cause.Error(), models.MaxLastErrorLength)
	logger = logger.WithField("attempts", attempts)

	if attempts >= maxAttempts {
		if err := w.queue.DeletePendingDeletion(ctx, entry.ID); err != nil {
			logger.Errorf("failed to drop exhausted queue row: %v", err)
		}
		logger.Warnf("giving up on file deletion after %d attempts: %s", attempts, lastError)
		return skipped
	}

	if err := w.queue.UpdatePendingDeletion(ctx, entry.ID, attempts, lastError); err != nil {
		logger.Errorf("failed to record deletion attempt: %v", err)
	}
	logger.Warnf("file deletion failed, will retry: %s", lastError)
	return failed
}

// TruncateError shortens msg to at most limit runes.
func TruncateError(msg string, limit int) string {
	if utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:limit])
}

func outcomeLabel(o outcome) string {
	switch o {
	case deleted:
		return outcomeDeleted
	case skipped:
		return outcomeSkipped
	default:
		return outcomeFailed
	}
}
