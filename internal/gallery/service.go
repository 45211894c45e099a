package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"medialab/api/internal/apperr"
	"medialab/api/internal/models"
	"medialab/api/internal/naming"
	"medialab/api/internal/storage"
)

// Blob metadata keys an asset carries in the object store.
const (
	metaFilename     = "filename"
	metaPrompt       = "prompt"
	metaModel        = "model"
	metaSummary      = "summary"
	metaDescription  = "description"
	metaGenerationID = "generation_id"
	metaFolderMarker = "is_folder_marker"
)

// Service owns single-asset mutations. Writes follow the dual-write
// discipline: the store write decides success, the index write is best
// effort and its failure is logged, never surfaced.
type Service struct {
	store BlobStore
	index MetadataIndex
	log   zerolog.Logger
}

// NewService builds the orchestrator. index may be nil; every code path
// tolerates running without it.
func NewService(store BlobStore, index MetadataIndex, log zerolog.Logger) *Service {
	return &Service{store: store, index: index, log: log}
}

// CreateAssetInput carries one asset to persist. Filename is advisory: it is
// sanitized, deduplicated, or replaced with a generated id.
type CreateAssetInput struct {
	MediaType      models.MediaType
	FolderPath     string
	Filename       string
	Data           []byte
	ContentType    string
	Prompt         string
	Model          string
	Summary        string
	Description    string
	GenerationID   string
	Tags           []string
	CustomMetadata map[string]string
}

// CreateAsset persists bytes to the store first, then mirrors the descriptor
// into the index. A store failure fails the call; an index failure does not,
// because the reconciliation sweep will repair the gap.
func (s *Service) CreateAsset(ctx context.Context, in CreateAssetInput) (*models.Asset, error) {
	if !in.MediaType.Valid() {
		return nil, apperr.InvalidArgument("media type %q", in.MediaType)
	}
	if len(in.Data) == 0 {
		return nil, apperr.InvalidArgument("empty content")
	}

	container := s.store.ContainerFor(in.MediaType)

	resolved, err := naming.ResolveKey(ctx, in.FolderPath, in.Filename, func(ctx context.Context, key string) (bool, error) {
		_, err := s.store.GetMetadata(ctx, container, key)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.ensureFolder(ctx, container, resolved.FolderPath); err != nil {
		return nil, err
	}

	metadata := blobMetadata(in, resolved)
	url, err := s.store.Put(ctx, container, resolved.Key, in.Data, in.ContentType, metadata)
	if err != nil {
		return nil, err
	}

	record := &models.AssetRecord{
		ID:             resolved.AssetID,
		MediaType:      in.MediaType,
		StorageKey:     resolved.Key,
		Container:      container,
		URL:            url,
		Filename:       strings.TrimPrefix(resolved.Key, resolved.FolderPath),
		Size:           int64(len(in.Data)),
		ContentType:    in.ContentType,
		FolderPath:     resolved.FolderPath,
		Prompt:         in.Prompt,
		Model:          in.Model,
		Summary:        in.Summary,
		Description:    in.Description,
		GenerationID:   in.GenerationID,
		Tags:           in.Tags,
		CustomMetadata: in.CustomMetadata,
	}
	s.indexUpsert(ctx, record)

	return &models.Asset{
		ID:          resolved.AssetID,
		MediaType:   in.MediaType,
		StorageKey:  resolved.Key,
		Container:   container,
		URL:         url,
		Size:        int64(len(in.Data)),
		ContentType: in.ContentType,
		FolderPath:  resolved.FolderPath,
		Metadata:    metadata,
	}, nil
}

// DeleteAsset removes one key. The index entry goes first, best effort; the
// store delete is the authoritative answer, and false means the key was
// already gone.
func (s *Service) DeleteAsset(ctx context.Context, mediaType models.MediaType, key string) (bool, error) {
	if !mediaType.Valid() {
		return false, apperr.InvalidArgument("media type %q", mediaType)
	}
	if key == "" {
		return false, apperr.InvalidArgument("empty storage key")
	}

	if s.index != nil {
		if _, err := s.index.Delete(ctx, naming.AssetIDFromKey(key), mediaType); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("index delete failed, store delete proceeds")
		}
	}

	return s.store.Delete(ctx, s.store.ContainerFor(mediaType), key)
}

// MoveAsset relocates a key into destFolder. The copy lands before the
// source is removed, so a failure at any step leaves at least one complete
// copy of the bytes in the store.
func (s *Service) MoveAsset(ctx context.Context, mediaType models.MediaType, sourceKey, destFolder string) (*models.Asset, error) {
	if !mediaType.Valid() {
		return nil, apperr.InvalidArgument("media type %q", mediaType)
	}
	if sourceKey == "" {
		return nil, apperr.InvalidArgument("empty source key")
	}
	if storage.IsFolderMarker(sourceKey) {
		return nil, apperr.InvalidArgument("cannot move folder marker %s", sourceKey)
	}

	container := s.store.ContainerFor(mediaType)
	folder := naming.NormalizeFolderPath(destFolder)
	filename := sourceKey[strings.LastIndex(sourceKey, "/")+1:]
	destKey := folder + filename

	if destKey == sourceKey {
		return s.assetAt(ctx, mediaType, container, sourceKey)
	}

	// Source existence is checked before the destination: a missing source is
	// NotFound even when the destination happens to be occupied.
	metadata, err := s.store.GetMetadata(ctx, container, sourceKey)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetMetadata(ctx, container, destKey); err == nil {
		return nil, apperr.Conflict("destination %s already exists", destKey)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	if err := s.ensureFolder(ctx, container, folder); err != nil {
		return nil, err
	}

	data, contentType, err := s.store.GetContent(ctx, container, sourceKey)
	if err != nil {
		return nil, err
	}

	url, err := s.store.Put(ctx, container, destKey, data, contentType, metadata)
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		upd := models.AssetUpdate{StorageKey: &destKey, FolderPath: &folder, URL: &url}
		if _, err := s.index.Update(ctx, naming.AssetIDFromKey(sourceKey), mediaType, upd); err != nil {
			s.log.Warn().Err(err).Str("source", sourceKey).Str("dest", destKey).
				Msg("index update failed after move, sweep will repair")
		}
	}

	// Source removal is last. If it fails the asset exists twice, which the
	// sweep tolerates; it never exists zero times.
	if _, err := s.store.Delete(ctx, container, sourceKey); err != nil {
		s.log.Warn().Err(err).Str("source", sourceKey).Msg("source delete failed after copy")
	}

	return &models.Asset{
		ID:          naming.AssetIDFromKey(destKey),
		MediaType:   mediaType,
		StorageKey:  destKey,
		Container:   container,
		URL:         url,
		Size:        int64(len(data)),
		ContentType: contentType,
		FolderPath:  folder,
		Metadata:    metadata,
	}, nil
}

// GetContent streams the raw bytes of one asset.
func (s *Service) GetContent(ctx context.Context, mediaType models.MediaType, key string) ([]byte, string, error) {
	if !mediaType.Valid() {
		return nil, "", apperr.InvalidArgument("media type %q", mediaType)
	}
	return s.store.GetContent(ctx, s.store.ContainerFor(mediaType), key)
}

// GetMetadata merges both views of an asset: blob metadata always, the index
// record when one exists. The blob side wins no keys; they are namespaced
// apart in the response.
func (s *Service) GetMetadata(ctx context.Context, mediaType models.MediaType, key string) (map[string]string, *models.AssetRecord, error) {
	if !mediaType.Valid() {
		return nil, nil, apperr.InvalidArgument("media type %q", mediaType)
	}

	blobMeta, err := s.store.GetMetadata(ctx, s.store.ContainerFor(mediaType), key)
	if err != nil {
		return nil, nil, err
	}

	var record *models.AssetRecord
	if s.index != nil {
		record, err = s.index.Get(ctx, naming.AssetIDFromKey(key), mediaType)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("index read failed, serving blob metadata only")
			record = nil
		}
	}
	return blobMeta, record, nil
}

// UpdateMetadata applies the two write disciplines side by side: the blob
// metadata set is replaced wholesale, the index record is merged field by
// field. The blob write decides success.
func (s *Service) UpdateMetadata(ctx context.Context, mediaType models.MediaType, key string, blobMeta map[string]string, upd models.AssetUpdate) (*models.AssetRecord, error) {
	if !mediaType.Valid() {
		return nil, apperr.InvalidArgument("media type %q", mediaType)
	}

	container := s.store.ContainerFor(mediaType)
	if blobMeta != nil {
		if err := s.store.SetMetadata(ctx, container, key, blobMeta); err != nil {
			return nil, err
		}
	}

	if s.index == nil {
		return nil, nil
	}
	record, err := s.index.Update(ctx, naming.AssetIDFromKey(key), mediaType, upd)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidArgument) {
			return nil, nil
		}
		s.log.Warn().Err(err).Str("key", key).Msg("index metadata update failed")
		return nil, nil
	}
	return record, nil
}

// CreateFolder materializes an empty virtual folder by writing its marker.
func (s *Service) CreateFolder(ctx context.Context, mediaType models.MediaType, folderPath string) (string, error) {
	if !mediaType.Valid() {
		return "", apperr.InvalidArgument("media type %q", mediaType)
	}
	folder := naming.NormalizeFolderPath(folderPath)
	if folder == "" {
		return "", apperr.InvalidArgument("folder path resolves to root")
	}
	if err := s.ensureFolder(ctx, s.store.ContainerFor(mediaType), folder); err != nil {
		return "", err
	}
	return folder, nil
}

func (s *Service) ensureFolder(ctx context.Context, container, folder string) error {
	if folder == "" {
		return nil
	}

	marker := folder + storage.FolderMarkerSuffix
	if _, err := s.store.GetMetadata(ctx, container, marker); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	_, err := s.store.Put(ctx, container, marker, []byte{}, "application/octet-stream", map[string]string{
		metaFolderMarker: "true",
	})
	if err != nil {
		return fmt.Errorf("create folder marker: %w", err)
	}
	return nil
}

func (s *Service) indexUpsert(ctx context.Context, record *models.AssetRecord) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(ctx, record); err != nil {
		s.log.Warn().Err(err).
			Str("key", record.StorageKey).
			Str("mediaType", string(record.MediaType)).
			Msg("index upsert failed, asset is stored but unindexed until next sweep")
	}
}

func (s *Service) assetAt(ctx context.Context, mediaType models.MediaType, container, key string) (*models.Asset, error) {
	metadata, err := s.store.GetMetadata(ctx, container, key)
	if err != nil {
		return nil, err
	}
	return &models.Asset{
		ID:         naming.AssetIDFromKey(key),
		MediaType:  mediaType,
		StorageKey: key,
		Container:  container,
		URL:        s.store.URL(container, key),
		FolderPath: storage.FolderPathOf(key),
		Metadata:   metadata,
	}, nil
}

func blobMetadata(in CreateAssetInput, resolved naming.Resolved) map[string]string {
	metadata := map[string]string{}
	for k, v := range in.CustomMetadata {
		metadata[k] = v
	}

	metadata[metaFilename] = strings.TrimPrefix(resolved.Key, resolved.FolderPath)
	if in.Prompt != "" {
		metadata[metaPrompt] = in.Prompt
	}
	if in.Model != "" {
		metadata[metaModel] = in.Model
	}
	if in.Summary != "" {
		metadata[metaSummary] = in.Summary
	}
	if in.Description != "" {
		metadata[metaDescription] = in.Description
	}
	if in.GenerationID != "" {
		metadata[metaGenerationID] = in.GenerationID
	}
	return metadata
}
