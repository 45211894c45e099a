// Package index mirrors asset descriptors into postgres for fast search and
// listing. The index is an optional accelerator: it is never the sole
// durable copy of anything, and every caller must tolerate its absence.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"medialab/api/internal/apperr"
	"medialab/api/internal/ids"
	"medialab/api/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS asset_metadata (
	id              TEXT        NOT NULL,
	media_type      TEXT        NOT NULL,
	storage_key     TEXT        NOT NULL,
	container       TEXT        NOT NULL,
	url             TEXT        NOT NULL DEFAULT '',
	filename        TEXT        NOT NULL DEFAULT '',
	size            BIGINT      NOT NULL DEFAULT 0,
	content_type    TEXT        NOT NULL DEFAULT '',
	folder_path     TEXT        NOT NULL DEFAULT '',
	prompt          TEXT        NOT NULL DEFAULT '',
	model           TEXT        NOT NULL DEFAULT '',
	summary         TEXT        NOT NULL DEFAULT '',
	description     TEXT        NOT NULL DEFAULT '',
	generation_id   TEXT        NOT NULL DEFAULT '',
	tags            TEXT[]      NOT NULL DEFAULT '{}',
	custom_metadata JSONB       NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (id, media_type)
);
CREATE INDEX IF NOT EXISTS idx_asset_metadata_folder  ON asset_metadata (media_type, folder_path);
CREATE INDEX IF NOT EXISTS idx_asset_metadata_created ON asset_metadata (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_asset_metadata_tags    ON asset_metadata USING GIN (tags);
`

const recordColumns = `id, media_type, storage_key, container, url, filename, size, content_type,
	folder_path, prompt, model, summary, description, generation_id, tags, custom_metadata,
	created_at, updated_at`

type Index struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func New(pool *pgxpool.Pool, log zerolog.Logger) *Index {
	return &Index{pool: pool, log: log}
}

// EnsureSchema bootstraps the metadata table. Idempotent, startup-only.
func (i *Index) EnsureSchema(ctx context.Context) error {
	if _, err := i.pool.Exec(ctx, schema); err != nil {
		return apperr.IndexUnavailable(fmt.Errorf("ensure schema: %w", err))
	}
	return nil
}

// Upsert inserts or fully replaces a record keyed by (id, media_type). A
// missing id is generated. created_at survives replacement; updated_at is
// restamped on every write.
func (i *Index) Upsert(ctx context.Context, record *models.AssetRecord) error {
	if record.ID == "" {
		record.ID = ids.New()
	}
	if !record.MediaType.Valid() {
		return apperr.InvalidArgument("media type %q", record.MediaType)
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	if record.CustomMetadata == nil {
		record.CustomMetadata = map[string]string{}
	}

	const query = `
		INSERT INTO asset_metadata (
			id, media_type, storage_key, container, url, filename, size, content_type,
			folder_path, prompt, model, summary, description, generation_id, tags, custom_metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (id, media_type) DO UPDATE SET
			storage_key = EXCLUDED.storage_key,
			container = EXCLUDED.container,
			url = EXCLUDED.url,
			filename = EXCLUDED.filename,
			size = EXCLUDED.size,
			content_type = EXCLUDED.content_type,
			folder_path = EXCLUDED.folder_path,
			prompt = EXCLUDED.prompt,
			model = EXCLUDED.model,
			summary = EXCLUDED.summary,
			description = EXCLUDED.description,
			generation_id = EXCLUDED.generation_id,
			tags = EXCLUDED.tags,
			custom_metadata = EXCLUDED.custom_metadata,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	row := i.pool.QueryRow(ctx, query,
		record.ID,
		record.MediaType,
		record.StorageKey,
		record.Container,
		record.URL,
		record.Filename,
		record.Size,
		record.ContentType,
		record.FolderPath,
		record.Prompt,
		record.Model,
		record.Summary,
		record.Description,
		record.GenerationID,
		record.Tags,
		record.CustomMetadata,
	)
	if err := row.Scan(&record.CreatedAt, &record.UpdatedAt); err != nil {
		return apperr.IndexUnavailable(fmt.Errorf("upsert %s: %w", record.ID, err))
	}
	return nil
}

func (i *Index) Get(ctx context.Context, id string, mediaType models.MediaType) (*models.AssetRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM asset_metadata WHERE id = $1 AND media_type = $2`, recordColumns)

	record, err := scanRecord(i.pool.QueryRow(ctx, query, id, mediaType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("metadata %s/%s", mediaType, id)
		}
		return nil, apperr.IndexUnavailable(fmt.Errorf("get %s: %w", id, err))
	}
	return record, nil
}

// Update merges the non-nil fields of upd into an existing record. Unlike
// blob metadata this is a field-level merge, and it never creates: a missing
// (id, media_type) pair is NotFound.
func (i *Index) Update(ctx context.Context, id string, mediaType models.MediaType, upd models.AssetUpdate) (*models.AssetRecord, error) {
	set, args := buildUpdateSet(upd)
	if len(set) == 0 {
		return nil, apperr.InvalidArgument("no fields to update")
	}

	args = append(args, id, mediaType)
	query := fmt.Sprintf(
		`UPDATE asset_metadata SET %s, updated_at = NOW() WHERE id = $%d AND media_type = $%d RETURNING %s`,
		set, len(args)-1, len(args), recordColumns,
	)

	record, err := scanRecord(i.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("metadata %s/%s", mediaType, id)
		}
		return nil, apperr.IndexUnavailable(fmt.Errorf("update %s: %w", id, err))
	}
	return record, nil
}

// Delete removes a record, reporting false when it was already absent.
func (i *Index) Delete(ctx context.Context, id string, mediaType models.MediaType) (bool, error) {
	tag, err := i.pool.Exec(ctx, `DELETE FROM asset_metadata WHERE id = $1 AND media_type = $2`, id, mediaType)
	if err != nil {
		return false, apperr.IndexUnavailable(fmt.Errorf("delete %s: %w", id, err))
	}
	return tag.RowsAffected() > 0, nil
}

// Query lists records matching the filter with offset pagination and a total
// count. Tag filtering matches records containing ANY requested tag.
func (i *Index) Query(ctx context.Context, q models.AssetQuery) (*models.AssetPage, error) {
	where, args := buildAssetFilter(q)

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		`SELECT %s FROM asset_metadata %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		recordColumns, where, orderColumn(q.OrderBy), orderDirection(q.OrderDesc), limit, offset,
	)

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("query assets: %w", err))
	}
	defer rows.Close()

	items, err := collectRecords(rows)
	if err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("scan assets: %w", err))
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM asset_metadata %s`, where)
	if err := i.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("count assets: %w", err))
	}

	return &models.AssetPage{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}, nil
}

// Search does case-insensitive substring matching across the text fields
// (prompt, filename, storage key, summary, description), OR'd.
func (i *Index) Search(ctx context.Context, term string, mediaType models.MediaType, limit int) ([]models.AssetRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	where, args := buildSearchFilter(term, mediaType)
	query := fmt.Sprintf(
		`SELECT %s FROM asset_metadata %s ORDER BY created_at DESC LIMIT %d`,
		recordColumns, where, limit,
	)

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("search assets: %w", err))
	}
	defer rows.Close()

	items, err := collectRecords(rows)
	if err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("scan search: %w", err))
	}
	return items, nil
}

func (i *Index) Recent(ctx context.Context, mediaType models.MediaType, limit int) ([]models.AssetRecord, error) {
	page, err := i.Query(ctx, models.AssetQuery{
		MediaType: mediaType,
		Limit:     limit,
		OrderBy:   "created_at",
		OrderDesc: true,
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (i *Index) FolderStats(ctx context.Context, mediaType models.MediaType) ([]models.FolderStat, error) {
	query := `SELECT folder_path, COUNT(*) FROM asset_metadata GROUP BY folder_path ORDER BY COUNT(*) DESC`
	args := []any{}
	if mediaType != "" {
		query = `SELECT folder_path, COUNT(*) FROM asset_metadata WHERE media_type = $1 GROUP BY folder_path ORDER BY COUNT(*) DESC`
		args = append(args, mediaType)
	}

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("folder stats: %w", err))
	}
	defer rows.Close()

	var stats []models.FolderStat
	for rows.Next() {
		var s models.FolderStat
		if err := rows.Scan(&s.FolderPath, &s.Count); err != nil {
			return nil, apperr.IndexUnavailable(fmt.Errorf("scan folder stats: %w", err))
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("folder stats rows: %w", err))
	}
	return stats, nil
}

// FolderSummaries aggregates per-folder counts across media types for the
// folder-tree UI. Root is reported as "/", other folders without their
// trailing separator.
func (i *Index) FolderSummaries(ctx context.Context, mediaType models.MediaType) ([]models.FolderSummary, error) {
	query := `SELECT folder_path, media_type, COUNT(*) FROM asset_metadata GROUP BY folder_path, media_type`
	args := []any{}
	if mediaType != "" {
		query = `SELECT folder_path, media_type, COUNT(*) FROM asset_metadata WHERE media_type = $1 GROUP BY folder_path, media_type`
		args = append(args, mediaType)
	}

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("folder summaries: %w", err))
	}
	defer rows.Close()

	byFolder := make(map[string]*models.FolderSummary)
	for rows.Next() {
		var folder, media string
		var count int
		if err := rows.Scan(&folder, &media, &count); err != nil {
			return nil, apperr.IndexUnavailable(fmt.Errorf("scan folder summary: %w", err))
		}

		display := "/"
		if folder != "" {
			display = strings.TrimSuffix(folder, "/")
		}

		summary, ok := byFolder[display]
		if !ok {
			summary = &models.FolderSummary{FolderPath: display}
			byFolder[display] = summary
		}
		summary.AssetCount += count
		summary.MediaTypes = append(summary.MediaTypes, media)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.IndexUnavailable(fmt.Errorf("folder summary rows: %w", err))
	}

	out := make([]models.FolderSummary, 0, len(byFolder))
	for _, summary := range byFolder {
		sort.Strings(summary.MediaTypes)
		out = append(out, *summary)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FolderPath < out[b].FolderPath })
	return out, nil
}

// Health is a cheap connectivity probe: a bounded count, never a full scan.
func (i *Index) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var n int
	if err := i.pool.QueryRow(ctx, `SELECT COUNT(*) FROM (SELECT 1 FROM asset_metadata LIMIT 1000) probe`).Scan(&n); err != nil {
		return apperr.IndexUnavailable(fmt.Errorf("health probe: %w", err))
	}
	return nil
}

func scanRecord(row pgx.Row) (*models.AssetRecord, error) {
	var r models.AssetRecord
	if err := row.Scan(
		&r.ID,
		&r.MediaType,
		&r.StorageKey,
		&r.Container,
		&r.URL,
		&r.Filename,
		&r.Size,
		&r.ContentType,
		&r.FolderPath,
		&r.Prompt,
		&r.Model,
		&r.Summary,
		&r.Description,
		&r.GenerationID,
		&r.Tags,
		&r.CustomMetadata,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRecords(rows pgx.Rows) ([]models.AssetRecord, error) {
	var items []models.AssetRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *record)
	}
	return items, rows.Err()
}
