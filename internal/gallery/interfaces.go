// Package gallery holds the core asset semantics: dual writes across the
// object store and the metadata index, gallery reads planned across both, and
// the batch and reconciliation machinery that keeps them convergent.
//
// The invariants live here, not in the adapters. The store is authoritative
// for bytes and existence; the index is a disposable accelerator that the
// sweep can rebuild from the store at any time.
package gallery

import (
	"context"

	"medialab/api/internal/models"
	"medialab/api/internal/storage"
)

// BlobStore is the slice of the object-store adapter the gallery core
// consumes.
type BlobStore interface {
	ContainerFor(mediaType models.MediaType) string
	Containers() map[string]models.MediaType
	URL(container, key string) string
	Put(ctx context.Context, container, key string, data []byte, contentType string, metadata map[string]string) (string, error)
	GetContent(ctx context.Context, container, key string) ([]byte, string, error)
	GetMetadata(ctx context.Context, container, key string) (map[string]string, error)
	SetMetadata(ctx context.Context, container, key string, metadata map[string]string) error
	Delete(ctx context.Context, container, key string) (bool, error)
	List(ctx context.Context, opts storage.ListOptions) (storage.ListResult, error)
	ListVirtualFolders(ctx context.Context, container string) ([]string, error)
}

// MetadataIndex is the optional search index. Implementations must be safe to
// call concurrently; callers must treat every error as survivable.
type MetadataIndex interface {
	Upsert(ctx context.Context, record *models.AssetRecord) error
	Get(ctx context.Context, id string, mediaType models.MediaType) (*models.AssetRecord, error)
	Update(ctx context.Context, id string, mediaType models.MediaType, upd models.AssetUpdate) (*models.AssetRecord, error)
	Delete(ctx context.Context, id string, mediaType models.MediaType) (bool, error)
	Query(ctx context.Context, q models.AssetQuery) (*models.AssetPage, error)
	Search(ctx context.Context, term string, mediaType models.MediaType, limit int) ([]models.AssetRecord, error)
	Recent(ctx context.Context, mediaType models.MediaType, limit int) ([]models.AssetRecord, error)
	FolderStats(ctx context.Context, mediaType models.MediaType) ([]models.FolderStat, error)
	FolderSummaries(ctx context.Context, mediaType models.MediaType) ([]models.FolderSummary, error)
	Health(ctx context.Context) error
}

// FolderCache memoizes expensive folder scans. A miss is never an error.
type FolderCache interface {
	GetFolders(ctx context.Context, key string) ([]string, bool)
	SetFolders(ctx context.Context, key string, folders []string)
	Invalidate(ctx context.Context, key string)
}
