package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"medialab/api/internal/apperr"
	"medialab/api/internal/config"
	"medialab/api/internal/models"
	"medialab/api/internal/naming"
	"medialab/api/internal/storage"
)

// BatchOutcome reports a bulk delete or move. Background outcomes carry an
// empty tally: the work is accepted, not yet accounted.
type BatchOutcome struct {
	Background bool              `json:"background"`
	Requested  int               `json:"requested"`
	Succeeded  []string          `json:"succeeded,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// SyncReport tallies one reconciliation sweep over the store.
type SyncReport struct {
	Processed int           `json:"processed"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Runner executes bulk mutations and the store-to-index reconciliation
// sweep. Small batches run inline; batches past the configured thresholds
// are detached to the background, because bulk store round trips can outlive
// any reasonable request deadline.
type Runner struct {
	service *Service
	store   BlobStore
	index   MetadataIndex
	cfg     config.TasksConfig
	log     zerolog.Logger

	// launch detaches a background batch; replaced in tests to run inline.
	launch func(fn func())
}

func NewRunner(service *Service, store BlobStore, index MetadataIndex, cfg config.TasksConfig, log zerolog.Logger) *Runner {
	return &Runner{
		service: service,
		store:   store,
		index:   index,
		cfg:     cfg,
		log:     log,
		launch:  func(fn func()) { go fn() },
	}
}

// BatchDelete removes many keys, each independently: one failure never
// aborts the rest. At or past the delete threshold the batch detaches and
// the caller gets an accepted-but-untallied outcome.
func (r *Runner) BatchDelete(ctx context.Context, mediaType models.MediaType, keys []string) (*BatchOutcome, error) {
	if !mediaType.Valid() {
		return nil, apperr.InvalidArgument("media type %q", mediaType)
	}
	if len(keys) == 0 {
		return nil, apperr.InvalidArgument("empty key list")
	}

	if len(keys) >= r.cfg.DeleteThreshold {
		r.detach("batch delete", len(keys), func(ctx context.Context) {
			r.runBatchDelete(ctx, mediaType, keys)
		})
		return &BatchOutcome{Background: true, Requested: len(keys)}, nil
	}
	return r.runBatchDelete(ctx, mediaType, keys), nil
}

// BatchMove relocates many keys into destFolder with the same independence
// and threshold rules as BatchDelete.
func (r *Runner) BatchMove(ctx context.Context, mediaType models.MediaType, keys []string, destFolder string) (*BatchOutcome, error) {
	if !mediaType.Valid() {
		return nil, apperr.InvalidArgument("media type %q", mediaType)
	}
	if len(keys) == 0 {
		return nil, apperr.InvalidArgument("empty key list")
	}

	if len(keys) >= r.cfg.MoveThreshold {
		r.detach("batch move", len(keys), func(ctx context.Context) {
			r.runBatchMove(ctx, mediaType, keys, destFolder)
		})
		return &BatchOutcome{Background: true, Requested: len(keys)}, nil
	}
	return r.runBatchMove(ctx, mediaType, keys, destFolder), nil
}

func (r *Runner) runBatchDelete(ctx context.Context, mediaType models.MediaType, keys []string) *BatchOutcome {
	outcome := &BatchOutcome{Requested: len(keys), Failed: map[string]string{}}
	for _, key := range keys {
		deleted, err := r.service.DeleteAsset(ctx, mediaType, key)
		switch {
		case err != nil:
			outcome.Failed[key] = err.Error()
		case !deleted:
			outcome.Failed[key] = "not found"
		default:
			outcome.Succeeded = append(outcome.Succeeded, key)
		}
	}
	r.log.Info().Int("requested", outcome.Requested).Int("deleted", len(outcome.Succeeded)).
		Int("failed", len(outcome.Failed)).Msg("batch delete finished")
	return outcome
}

func (r *Runner) runBatchMove(ctx context.Context, mediaType models.MediaType, keys []string, destFolder string) *BatchOutcome {
	outcome := &BatchOutcome{Requested: len(keys), Failed: map[string]string{}}
	for _, key := range keys {
		if _, err := r.service.MoveAsset(ctx, mediaType, key, destFolder); err != nil {
			outcome.Failed[key] = err.Error()
			continue
		}
		outcome.Succeeded = append(outcome.Succeeded, key)
	}
	r.log.Info().Int("requested", outcome.Requested).Int("moved", len(outcome.Succeeded)).
		Int("failed", len(outcome.Failed)).Msg("batch move finished")
	return outcome
}

// ReconcileIndex walks every container page by page and re-derives the index
// from what the store actually holds. It repairs both failure modes of the
// dual write: assets stored but never indexed, and records gone stale after
// moves. Existing records are left alone unless force is set, which rewrites
// them from the store's view.
func (r *Runner) ReconcileIndex(ctx context.Context, force bool) (*SyncReport, error) {
	if r.index == nil {
		return nil, apperr.IndexUnavailable(errors.New("metadata index not configured"))
	}

	started := time.Now()
	report := &SyncReport{}

	for container, mediaType := range r.store.Containers() {
		if err := r.reconcileContainer(ctx, container, mediaType, force, report); err != nil {
			return nil, err
		}
	}

	report.Duration = time.Since(started)
	r.log.Info().
		Int("processed", report.Processed).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("errors", len(report.Errors)).
		Dur("duration", report.Duration).
		Msg("index reconciliation finished")
	return report, nil
}

func (r *Runner) reconcileContainer(ctx context.Context, container string, mediaType models.MediaType, force bool, report *SyncReport) error {
	var token string
	for {
		result, err := r.store.List(ctx, storage.ListOptions{
			Container: container,
			PageSize:  r.cfg.SyncPageSize,
			PageToken: token,
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", container, err)
		}

		for _, entry := range result.Entries {
			if storage.IsFolderMarker(entry.Key) {
				continue
			}
			report.Processed++
			if err := r.reconcileEntry(ctx, container, mediaType, entry, force, report); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: %v", container, entry.Key, err))
			}
		}

		if result.NextPageToken == "" {
			return nil
		}
		token = result.NextPageToken
	}
}

func (r *Runner) reconcileEntry(ctx context.Context, container string, mediaType models.MediaType, entry storage.BlobInfo, force bool, report *SyncReport) error {
	id := naming.AssetIDFromKey(entry.Key)

	existing, err := r.index.Get(ctx, id, mediaType)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if existing != nil && !force {
		report.Skipped++
		return nil
	}

	record := &models.AssetRecord{
		ID:          id,
		MediaType:   mediaType,
		StorageKey:  entry.Key,
		Container:   container,
		URL:         r.store.URL(container, entry.Key),
		Filename:    entry.Key[len(entry.FolderPath):],
		Size:        entry.Size,
		ContentType: entry.ContentType,
		FolderPath:  entry.FolderPath,
		Prompt:      entry.Metadata[metaPrompt],
		Model:       entry.Metadata[metaModel],
	}
	if existing != nil {
		// Preserve what only the index knows; the store cannot restore it.
		record.Summary = existing.Summary
		record.Description = existing.Description
		record.GenerationID = existing.GenerationID
		record.Tags = existing.Tags
		record.CustomMetadata = existing.CustomMetadata
	}

	if err := r.index.Upsert(ctx, record); err != nil {
		return err
	}
	if existing == nil {
		report.Created++
	} else {
		report.Updated++
	}
	return nil
}

func (r *Runner) detach(name string, size int, fn func(ctx context.Context)) {
	r.log.Info().Str("task", name).Int("size", size).Msg("batch exceeds sync threshold, detaching")
	r.launch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		fn(ctx)
	})
}
