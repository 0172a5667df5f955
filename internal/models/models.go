// internal/models/models.go
package models

import (
	"errors"
	"time"
)

var ErrAssetNotFound = errors.New("asset not found")

type Asset struct {
	ID               int64     `db:"id" json:"id"`
	Filename         string    `db:"filename" json:"filename"`
	StoragePath      string    `db:"storage_path" json:"-"`
	URL              string    `db:"-" json:"url,omitempty"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	ClientID         string    `db:"client_id" json:"client_id"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	Size             int64     `db:"size" json:"size"`
	ContentType      string    `db:"content_type" json:"content_type"`
	Width            int       `db:"width" json:"width"`
	Height           int       `db:"height" json:"height"`
	Compressed       bool      `db:"compressed" json:"compressed"`
	UploadedAt       time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// AssetUpdate carries a partial metadata update. Nil fields are left untouched.
type AssetUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ClientID    *string `json:"client_id"`
}

func (u AssetUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.ClientID == nil
}

type ListQuery struct {
	ClientID string
	Search   string
	SortBy   string
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultSort     = "-uploaded_at"
)

var sortColumns = map[string]string{
	"uploaded_at": "uploaded_at",
	"name":        "name",
	"size":        "size",
	"client_id":   "client_id",
}

// Normalize clamps paging and replaces an unknown sort key with the default.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if _, _, ok := SortClause(q.SortBy); !ok {
		q.SortBy = DefaultSort
	}
	return q
}

// SortClause maps a sort key such as "-size" to a column and direction.
func SortClause(sortBy string) (column string, desc bool, ok bool) {
	key := sortBy
	if len(key) > 0 && key[0] == '-' {
		desc = true
		key = key[1:]
	}
	column, ok = sortColumns[key]
	return column, desc, ok
}

type AssetPage struct {
	Assets      []Asset `json:"images"`
	Page        int     `json:"page"`
	PageSize    int     `json:"page_size"`
	TotalCount  int64   `json:"total_count"`
	TotalPages  int     `json:"total_pages"`
	HasNext     bool    `json:"has_next"`
	HasPrevious bool    `json:"has_previous"`
}

func NewAssetPage(assets []Asset, q ListQuery, total int64) AssetPage {
	pages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	if assets == nil {
		assets = []Asset{}
	}
	return AssetPage{
		Assets:      assets,
		Page:        q.Page,
		PageSize:    q.PageSize,
		TotalCount:  total,
		TotalPages:  pages,
		HasNext:     q.Page < pages,
		HasPrevious: q.Page > 1,
	}
}

type ClientStat struct {
	ClientID  string `json:"client_id"`
	Count     int64  `json:"count"`
	TotalSize int64  `json:"total_size"`
}

type AssetStats struct {
	TotalImages   int64        `json:"total_images"`
	TotalSize     int64        `json:"total_size"`
	UniqueClients int          `json:"unique_clients"`
	ByClient      []ClientStat `json:"by_client"`
}

// DeletionRequest is one object-storage key whose metadata record is gone.
type DeletionRequest struct {
	StoragePath string
	ClientID    string
}

// PendingDeletion is a row of the pending_file_deletions queue.
type PendingDeletion struct {
	ID        int64     `db:"id" json:"id"`
	FilePath  string    `db:"file_path" json:"file_path"`
	ClientID  string    `db:"client_id" json:"client_id,omitempty"`
	QueuedAt  time.Time `db:"queued_at" json:"queued_at"`
	Attempts  int       `db:"attempts" json:"attempts"`
	LastError string    `db:"last_error" json:"last_error,omitempty"`
}

const (
	DefaultCleanupBatchSize = 100
	MaxCleanupBatchSize     = 1000
	DefaultMaxAttempts      = 3
	MaxLastErrorLength      = 500
)

type CleanupOptions struct {
	BatchSize   int `json:"batch_size"`
	MaxAttempts int `json:"max_attempts"`
}

// Normalize applies defaults and caps the batch size at MaxCleanupBatchSize.
func (o CleanupOptions) Normalize() CleanupOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultCleanupBatchSize
	}
	if o.BatchSize > MaxCleanupBatchSize {
		o.BatchSize = MaxCleanupBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

type CleanupSummary struct {
	Processed        int   `json:"processed"`
	Deleted          int   `json:"deleted"`
	Failed           int   `json:"failed"`
	Skipped          int   `json:"skipped"`
	RemainingInQueue int64 `json:"remaining_in_queue"`
}

type AttemptBucket struct {
	Attempts int   `json:"attempts"`
	Count    int64 `json:"count"`
}

type QueueStats struct {
	TotalPending   int64           `json:"total_pending"`
	OldestQueuedAt *time.Time      `json:"oldest_queued_at"`
	NewestQueuedAt *time.Time      `json:"newest_queued_at"`
	ByAttempts     []AttemptBucket `json:"by_attempts"`
}
