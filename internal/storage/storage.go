// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Storage is the Postgres-backed metadata store and deletion queue.
type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// likeEscape escapes LIKE wildcards so user input matches literally.
func likeEscape(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
