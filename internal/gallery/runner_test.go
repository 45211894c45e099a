package gallery

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medialab/api/internal/apperr"
	"medialab/api/internal/config"
	"medialab/api/internal/models"
)

func newTestRunner(store *fakeStore, index MetadataIndex) *Runner {
	svc := NewService(store, index, zerolog.Nop())
	runner := NewRunner(svc, store, index, config.TasksConfig{
		DeleteThreshold: 3,
		MoveThreshold:   3,
		SyncPageSize:    2,
	}, zerolog.Nop())
	runner.launch = func(fn func()) { fn() }
	return runner
}

func TestBatchDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("SmallBatchRunsInline", func(t *testing.T) {
		store := newFakeStore()
		store.put("images", "a.png", nil)
		store.put("images", "b.png", nil)
		runner := newTestRunner(store, newFakeIndex())

		outcome, err := runner.BatchDelete(ctx, models.MediaTypeImage, []string{"a.png", "b.png"})
		require.NoError(t, err)
		assert.False(t, outcome.Background)
		assert.ElementsMatch(t, []string{"a.png", "b.png"}, outcome.Succeeded)
		assert.Empty(t, outcome.Failed)
	})

	t.Run("FailuresAreIndependent", func(t *testing.T) {
		store := newFakeStore()
		store.put("images", "a.png", nil)
		runner := newTestRunner(store, newFakeIndex())

		outcome, err := runner.BatchDelete(ctx, models.MediaTypeImage, []string{"a.png", "ghost.png"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.png"}, outcome.Succeeded)
		assert.Equal(t, map[string]string{"ghost.png": "not found"}, outcome.Failed)
	})

	t.Run("LargeBatchDetaches", func(t *testing.T) {
		store := newFakeStore()
		keys := []string{"a.png", "b.png", "c.png", "d.png"}
		for _, k := range keys {
			store.put("images", k, nil)
		}
		runner := newTestRunner(store, newFakeIndex())

		outcome, err := runner.BatchDelete(ctx, models.MediaTypeImage, keys)
		require.NoError(t, err)
		assert.True(t, outcome.Background)
		assert.Equal(t, 4, outcome.Requested)
		assert.Empty(t, outcome.Succeeded, "background outcome carries no tally")

		for _, k := range keys {
			assert.False(t, store.has("images", k), "detached work still ran")
		}
	})

	t.Run("ThresholdSizedBatchDetaches", func(t *testing.T) {
		store := newFakeStore()
		keys := []string{"a.png", "b.png", "c.png"}
		for _, k := range keys {
			store.put("images", k, nil)
		}
		runner := newTestRunner(store, newFakeIndex())

		// The threshold is inclusive: a batch of exactly the configured size
		// already detaches.
		outcome, err := runner.BatchDelete(ctx, models.MediaTypeImage, keys)
		require.NoError(t, err)
		assert.True(t, outcome.Background)
	})

	t.Run("EmptyBatchIsInvalid", func(t *testing.T) {
		runner := newTestRunner(newFakeStore(), newFakeIndex())
		_, err := runner.BatchDelete(ctx, models.MediaTypeImage, nil)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})
}

func TestBatchMove(t *testing.T) {
	ctx := context.Background()

	t.Run("SmallBatchRunsInline", func(t *testing.T) {
		store := newFakeStore()
		store.put("images", "a.png", nil)
		store.put("images", "b.png", nil)
		runner := newTestRunner(store, newFakeIndex())

		outcome, err := runner.BatchMove(ctx, models.MediaTypeImage, []string{"a.png", "b.png"}, "archive")
		require.NoError(t, err)
		assert.False(t, outcome.Background)
		assert.Len(t, outcome.Succeeded, 2)
		assert.True(t, store.has("images", "archive/a.png"))
		assert.True(t, store.has("images", "archive/b.png"))
	})

	t.Run("ConflictFailsOnlyThatItem", func(t *testing.T) {
		store := newFakeStore()
		store.put("images", "a.png", nil)
		store.put("images", "b.png", nil)
		store.put("images", "archive/b.png", nil)
		runner := newTestRunner(store, newFakeIndex())

		outcome, err := runner.BatchMove(ctx, models.MediaTypeImage, []string{"a.png", "b.png"}, "archive")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.png"}, outcome.Succeeded)
		assert.Contains(t, outcome.Failed, "b.png")
		assert.True(t, store.has("images", "b.png"), "conflicted source stays put")
	})

	t.Run("ThresholdSizedBatchDetaches", func(t *testing.T) {
		store := newFakeStore()
		keys := []string{"a.png", "b.png", "c.png"}
		for _, k := range keys {
			store.put("images", k, nil)
		}
		runner := newTestRunner(store, newFakeIndex())

		outcome, err := runner.BatchMove(ctx, models.MediaTypeImage, keys, "archive")
		require.NoError(t, err)
		assert.True(t, outcome.Background)
		for _, k := range keys {
			assert.True(t, store.has("images", "archive/"+k))
		}
	})
}

func TestReconcileIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesMissingRecords", func(t *testing.T) {
		store := newFakeStore()
		store.put("images", "pets/cat.png", map[string]string{"prompt": "a neon cat"})
		store.put("images", "pets/.folder", map[string]string{"is_folder_marker": "true"})
		store.put("videos", "clip.mp4", nil)
		index := newFakeIndex()
		runner := newTestRunner(store, index)

		report, err := runner.ReconcileIndex(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Processed, "folder markers are skipped")
		assert.Equal(t, 2, report.Created)
		assert.Zero(t, report.Updated)
		assert.Empty(t, report.Errors)

		record, ok := index.record("pets/cat.png", models.MediaTypeImage)
		require.True(t, ok)
		assert.Equal(t, "cat", record.ID)
		assert.Equal(t, "pets/", record.FolderPath)
		assert.Equal(t, "a neon cat", record.Prompt)
	})

	t.Run("UpdatesStaleRecordsPreservingIndexOnlyFields", func(t *testing.T) {
		store := newFakeStore()
		index := newFakeIndex()
		svc := NewService(store, index, zerolog.Nop())

		_, err := svc.CreateAsset(ctx, CreateAssetInput{
			MediaType: models.MediaTypeImage, Filename: "cat.png",
			Data: []byte("x"), ContentType: "image/png",
			Summary: "index-only summary", Tags: []string{"cat"},
		})
		require.NoError(t, err)

		// Simulate a move whose index write was lost.
		store.put("images", "archive/cat.png", nil)
		_, err = store.Delete(ctx, "images", "cat.png")
		require.NoError(t, err)

		runner := newTestRunner(store, index)

		unforced, err := runner.ReconcileIndex(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, unforced.Skipped, "existing records are untouched without force")
		assert.Zero(t, unforced.Updated)

		report, err := runner.ReconcileIndex(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)

		record, ok := index.record("archive/cat.png", models.MediaTypeImage)
		require.True(t, ok)
		assert.Equal(t, "archive/cat.png", record.StorageKey)
		assert.Equal(t, "index-only summary", record.Summary)
		assert.Equal(t, []string{"cat"}, record.Tags)
	})

	t.Run("PagesThroughLargeContainers", func(t *testing.T) {
		store := newFakeStore()
		for _, k := range []string{"a.png", "b.png", "c.png", "d.png", "e.png"} {
			store.put("images", k, nil)
		}
		index := newFakeIndex()
		runner := newTestRunner(store, index)

		report, err := runner.ReconcileIndex(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 5, report.Processed, "sync page size is 2, so paging must advance")
		assert.Equal(t, 5, report.Created)
	})

	t.Run("RequiresIndex", func(t *testing.T) {
		runner := newTestRunner(newFakeStore(), nil)
		_, err := runner.ReconcileIndex(ctx, false)
		assert.ErrorIs(t, err, apperr.ErrIndexUnavailable)
	})
}
