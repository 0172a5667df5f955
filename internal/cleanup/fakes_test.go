package cleanup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"assetstore/internal/models"
	"assetstore/internal/objectstore"
)

type memQueue struct {
	mu          sync.Mutex
	nextID      int64
	rows        map[int64]models.PendingDeletion
	now         time.Time
	insertCalls int
	insertErr   error
}

func newMemQueue() *memQueue {
	return &memQueue{
		rows: make(map[int64]models.PendingDeletion),
		now:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (q *memQueue) InsertPendingDeletions(_ context.Context, reqs []models.DeletionRequest) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertCalls++
	if q.insertErr != nil {
		return 0, q.insertErr
	}
	for _, r := range reqs {
		q.nextID++
		q.now = q.now.Add(time.Second)
		q.rows[q.nextID] = models.PendingDeletion{
			ID:       q.nextID,
			FilePath: r.StoragePath,
			ClientID: r.ClientID,
			QueuedAt: q.now,
		}
	}
	return int64(len(reqs)), nil
}

func (q *memQueue) OldestPendingDeletions(_ context.Context, limit, maxAttempts int) ([]models.PendingDeletion, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.PendingDeletion
	for _, r := range q.rows {
		if r.Attempts < maxAttempts {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QueuedAt.Equal(out[j].QueuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueue) UpdatePendingDeletion(_ context.Context, id int64, attempts int, lastError string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.rows[id]
	if !ok {
		return nil
	}
	r.Attempts = attempts
	r.LastError = lastError
	q.rows[id] = r
	return nil
}

func (q *memQueue) DeletePendingDeletion(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.rows, id)
	return nil
}

func (q *memQueue) CountPendingDeletions(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.rows)), nil
}

func (q *memQueue) PendingDeletionStats(_ context.Context) (models.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var stats models.QueueStats
	counts := map[int]int64{}
	for _, r := range q.rows {
		stats.TotalPending++
		counts[r.Attempts]++
		qa := r.QueuedAt
		if stats.OldestQueuedAt == nil || qa.Before(*stats.OldestQueuedAt) {
			stats.OldestQueuedAt = &qa
		}
		if stats.NewestQueuedAt == nil || qa.After(*stats.NewestQueuedAt) {
			stats.NewestQueuedAt = &qa
		}
	}
	for a, c := range counts {
		stats.ByAttempts = append(stats.ByAttempts, models.AttemptBucket{Attempts: a, Count: c})
	}
	return stats, nil
}

func (q *memQueue) row(path string) (models.PendingDeletion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.rows {
		if r.FilePath == path {
			return r, true
		}
	}
	return models.PendingDeletion{}, false
}

// staleQueue replays a previously selected batch, as a concurrent worker that
// selected before another one committed would see it.
type staleQueue struct {
	*memQueue
	batch []models.PendingDeletion
}

func (s *staleQueue) OldestPendingDeletions(context.Context, int, int) ([]models.PendingDeletion, error) {
	return s.batch, nil
}

type memStore struct {
	mu       sync.Mutex
	objects  map[string]bool
	failWith map[string]error
	deletes  []string
}

func newMemStore(keys ...string) *memStore {
	s := &memStore{objects: map[string]bool{}, failWith: map[string]error{}}
	for _, k := range keys {
		s.objects[k] = true
	}
	return s
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.failWith[key]; ok {
		return err
	}
	if !s.objects[key] {
		return objectstore.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

type blockingStore struct{}

func (blockingStore) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return errors.New("storage request timed out: " + ctx.Err().Error())
}
