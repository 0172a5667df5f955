// internal/storage/assets.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"assetstore/internal/models"
)

const assetColumns = `id, filename, storage_path, original_filename, client_id,
	COALESCE(name, '') AS name, COALESCE(description, '') AS description,
	size, content_type, width, height, compressed, uploaded_at`

func (s *Storage) CreateAsset(ctx context.Context, a *models.Asset) error {
	const op = "storage.CreateAsset"

	query := `
		INSERT INTO images (filename, storage_path, original_filename, client_id, name, description,
			size, content_type, width, height, compressed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, uploaded_at`

	err := s.pool.QueryRow(ctx, query,
		a.Filename, a.StoragePath, a.OriginalFilename, a.ClientID,
		nullIfEmpty(a.Name), nullIfEmpty(a.Description),
		a.Size, a.ContentType, a.Width, a.Height, a.Compressed,
	).Scan(&a.ID, &a.UploadedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	const op = "storage.GetAsset"

	rows, err := s.pool.Query(ctx, `SELECT `+assetColumns+` FROM images WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	asset, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Asset])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAssetNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return asset, nil
}

// ListAssets returns one page of assets and the total number of matches.
// q must already be normalized.
func (s *Storage) ListAssets(ctx context.Context, q models.ListQuery) ([]models.Asset, int64, error) {
	const op = "storage.ListAssets"

	var (
		conds []string
		args  []any
	)
	if q.ClientID != "" {
		args = append(args, q.ClientID)
		conds = append(conds, fmt.Sprintf("lower(client_id) = lower($%d)", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+likeEscape(q.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE $%[1]d OR description ILIKE $%[1]d OR filename ILIKE $%[1]d OR original_filename ILIKE $%[1]d)", n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM images`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	column, desc, ok := models.SortClause(q.SortBy)
	if !ok {
		column, desc, _ = models.SortClause(models.DefaultSort)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM images%s ORDER BY %s %s NULLS LAST, id %s LIMIT $%d OFFSET $%d`,
		assetColumns, where, column, dir, dir, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	assets, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Asset])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return assets, total, nil
}

// UpdateAsset applies the non-nil fields of u and returns the updated record.
func (s *Storage) UpdateAsset(ctx context.Context, id int64, u models.AssetUpdate) (*models.Asset, error) {
	const op = "storage.UpdateAsset"

	if u.Empty() {
		return s.GetAsset(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("name", u.Name)
	add("description", u.Description)
	add("client_id", u.ClientID)
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE images SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), assetColumns)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	asset, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Asset])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAssetNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return asset, nil
}

// DeleteAsset removes one record and returns the object key it referenced.
func (s *Storage) DeleteAsset(ctx context.Context, id int64) (models.DeletionRequest, error) {
	const op = "storage.DeleteAsset"

	var req models.DeletionRequest
	err := s.pool.QueryRow(ctx,
		`DELETE FROM images WHERE id = $1 RETURNING storage_path, client_id`, id,
	).Scan(&req.StoragePath, &req.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return req, models.ErrAssetNotFound
		}
		return req, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// DeleteAssets removes every listed record that exists. Unknown ids are ignored.
func (s *Storage) DeleteAssets(ctx context.Context, ids []int64) ([]models.DeletionRequest, error) {
	const op = "storage.DeleteAssets"

	if len(ids) == 0 {
		return nil, nil
	}
	reqs, err := s.deleteReturning(ctx, `DELETE FROM images WHERE id = ANY($1) RETURNING storage_path, client_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reqs, nil
}

// DeleteAssetsByClient removes every record of a client, matched case-insensitively.
func (s *Storage) DeleteAssetsByClient(ctx context.Context, clientID string) ([]models.DeletionRequest, error) {
	const op = "storage.DeleteAssetsByClient"

	reqs, err := s.deleteReturning(ctx,
		`DELETE FROM images WHERE lower(client_id) = lower($1) RETURNING storage_path, client_id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reqs, nil
}

func (s *Storage) deleteReturning(ctx context.Context, query string, args ...any) ([]models.DeletionRequest, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DeletionRequest, error) {
		var req models.DeletionRequest
		err := row.Scan(&req.StoragePath, &req.ClientID)
		return req, err
	})
}

// ListClients aggregates record count and total size per client id.
func (s *Storage) ListClients(ctx context.Context) ([]models.ClientStat, error) {
	const op = "storage.ListClients"

	rows, err := s.pool.Query(ctx, `
		SELECT client_id, count(*), COALESCE(sum(size), 0)
		FROM images
		GROUP BY client_id
		ORDER BY count(*) DESC, client_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ClientStat, error) {
		var c models.ClientStat
		err := row.Scan(&c.ClientID, &c.Count, &c.TotalSize)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

func (s *Storage) AssetStats(ctx context.Context) (models.AssetStats, error) {
	const op = "storage.AssetStats"

	clients, err := s.ListClients(ctx)
	if err != nil {
		return models.AssetStats{}, fmt.Errorf("%s: %w", op, err)
	}
	stats := models.AssetStats{UniqueClients: len(clients), ByClient: clients}
	if stats.ByClient == nil {
		stats.ByClient = []models.ClientStat{}
	}
	for _, c := range clients {
		stats.TotalImages += c.Count
		stats.TotalSize += c.TotalSize
	}
	return stats, nil
}
