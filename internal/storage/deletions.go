// internal/storage/deletions.go
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"assetstore/internal/models"
)

// InsertPendingDeletions queues every request in a single COPY.
func (s *Storage) InsertPendingDeletions(ctx context.Context, reqs []models.DeletionRequest) (int64, error) {
	const op = "storage.InsertPendingDeletions"

	if len(reqs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"pending_file_deletions"},
		[]string{"file_path", "client_id", "queued_at", "attempts"},
		pgx.CopyFromSlice(len(reqs), func(i int) ([]any, error) {
			return []any{strings.TrimSpace(reqs[i].StoragePath), nullIfEmpty(reqs[i].ClientID), now, 0}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// OldestPendingDeletions returns up to limit rows with attempts below
// maxAttempts, ordered by queued_at with id as the tie-breaker.
func (s *Storage) OldestPendingDeletions(ctx context.Context, limit, maxAttempts int) ([]models.PendingDeletion, error) {
	const op = "storage.OldestPendingDeletions"

	rows, err := s.pool.Query(ctx, `
		SELECT id, file_path, COALESCE(client_id, '') AS client_id, queued_at, attempts,
			COALESCE(last_error, '') AS last_error
		FROM pending_file_deletions
		WHERE attempts < $2
		ORDER BY queued_at, id
		LIMIT $1`, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PendingDeletion])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func (s *Storage) UpdatePendingDeletion(ctx context.Context, id int64, attempts int, lastError string) error {
	const op = "storage.UpdatePendingDeletion"

	_, err := s.pool.Exec(ctx,
		`UPDATE pending_file_deletions SET attempts = $2, last_error = $3 WHERE id = $1`,
		id, attempts, nullIfEmpty(lastError))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeletePendingDeletion removes a row. Removing an already-removed row is not an error.
func (s *Storage) DeletePendingDeletion(ctx context.Context, id int64) error {
	const op = "storage.DeletePendingDeletion"

	if _, err := s.pool.Exec(ctx, `DELETE FROM pending_file_deletions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) CountPendingDeletions(ctx context.Context) (int64, error) {
	const op = "storage.CountPendingDeletions"

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM pending_file_deletions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// PendingDeletionStats reads the attempt histogram in one statement so the
// totals and bounds come from the same snapshot.
func (s *Storage) PendingDeletionStats(ctx context.Context) (models.QueueStats, error) {
	const op = "storage.PendingDeletionStats"

	rows, err := s.pool.Query(ctx, `
		SELECT attempts, count(*), min(queued_at), max(queued_at)
		FROM pending_file_deletions
		GROUP BY attempts
		ORDER BY attempts`)
	if err != nil {
		return models.QueueStats{}, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	stats := models.QueueStats{ByAttempts: []models.AttemptBucket{}}
	for rows.Next() {
		var (
			b              models.AttemptBucket
			oldest, newest time.Time
		)
		if err := rows.Scan(&b.Attempts, &b.Count, &oldest, &newest); err != nil {
			return models.QueueStats{}, fmt.Errorf("%s: %w", op, err)
		}
		stats.TotalPending += b.Count
		stats.ByAttempts = append(stats.ByAttempts, b)
		if stats.OldestQueuedAt == nil || oldest.Before(*stats.OldestQueuedAt) {
			stats.OldestQueuedAt = &oldest
		}
		if stats.NewestQueuedAt == nil || newest.After(*stats.NewestQueuedAt) {
			stats.NewestQueuedAt = &newest
		}
	}
	if err := rows.Err(); err != nil {
		return models.QueueStats{}, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
