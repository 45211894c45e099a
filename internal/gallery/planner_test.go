package gallery

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medialab/api/internal/apperr"
	"medialab/api/internal/models"
)

type memFolderCache struct {
	entries map[string][]string
	hits    int
}

func newMemFolderCache() *memFolderCache {
	return &memFolderCache{entries: map[string][]string{}}
}

func (c *memFolderCache) GetFolders(_ context.Context, key string) ([]string, bool) {
	folders, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return folders, ok
}

func (c *memFolderCache) SetFolders(_ context.Context, key string, folders []string) {
	c.entries[key] = folders
}

func (c *memFolderCache) Invalidate(_ context.Context, key string) {
	delete(c.entries, key)
}

func seedPlanner(t *testing.T, index MetadataIndex) (*fakeStore, *Planner) {
	t.Helper()
	store := newFakeStore()
	svc := NewService(store, index, zerolog.Nop())
	ctx := context.Background()

	for _, in := range []CreateAssetInput{
		{MediaType: models.MediaTypeImage, Filename: "one.png", Data: []byte("a"), ContentType: "image/png", Tags: []string{"cat"}},
		{MediaType: models.MediaTypeImage, FolderPath: "pets", Filename: "two.png", Data: []byte("bb"), ContentType: "image/png", Tags: []string{"dog"}},
		{MediaType: models.MediaTypeVideo, Filename: "clip.mp4", Data: []byte("ccc"), ContentType: "video/mp4"},
	} {
		_, err := svc.CreateAsset(ctx, in)
		require.NoError(t, err)
	}
	return store, NewPlanner(store, index, nil, zerolog.Nop())
}

func TestPlannerList(t *testing.T) {
	ctx := context.Background()

	t.Run("PrefersIndexWhenConfigured", func(t *testing.T) {
		index := newFakeIndex()
		_, planner := seedPlanner(t, index)

		page, err := planner.List(ctx, GalleryQuery{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		assert.Empty(t, page.ContinuationToken, "index path pages by offset only")
	})

	t.Run("ContinuationTokenForcesStorePath", func(t *testing.T) {
		index := newFakeIndex()
		index.failAll = true
		_, planner := seedPlanner(t, newFakeIndex())
		planner.index = index

		page, err := planner.List(ctx, GalleryQuery{
			MediaType:         models.MediaTypeImage,
			Limit:             10,
			ContinuationToken: "images|a",
		})
		require.NoError(t, err, "token path never touches the index")
		assert.NotNil(t, page)
	})

	t.Run("StorePathMergesContainersByRecency", func(t *testing.T) {
		_, planner := seedPlanner(t, nil)

		page, err := planner.List(ctx, GalleryQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.Equal(t, "clip.mp4", page.Items[0].Name, "newest first")
		assert.Equal(t, models.MediaTypeVideo, page.Items[0].MediaType)
	})

	t.Run("StorePathSkipsFolderMarkers", func(t *testing.T) {
		store, planner := seedPlanner(t, nil)
		_ = store

		page, err := planner.List(ctx, GalleryQuery{MediaType: models.MediaTypeImage, Limit: 10})
		require.NoError(t, err)
		for _, item := range page.Items {
			assert.NotContains(t, item.Name, ".folder")
		}
	})

	t.Run("StorePathAppliesOffsetAndLimit", func(t *testing.T) {
		_, planner := seedPlanner(t, nil)

		page, err := planner.List(ctx, GalleryQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, "pets/two.png", page.Items[0].Name)
	})

	t.Run("FolderFilterMatchesDirectChildrenOnly", func(t *testing.T) {
		_, planner := seedPlanner(t, nil)
		folder := "pets"

		page, err := planner.List(ctx, GalleryQuery{MediaType: models.MediaTypeImage, FolderPath: &folder, Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "pets/two.png", page.Items[0].Name)
	})

	t.Run("MalformedTokenIsInvalidArgument", func(t *testing.T) {
		_, planner := seedPlanner(t, nil)
		_, err := planner.List(ctx, GalleryQuery{ContinuationToken: "garbage"})
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})

	t.Run("IndexFailureFallsBackToStore", func(t *testing.T) {
		index := newFakeIndex()
		store, planner := seedPlanner(t, index)
		_ = store
		index.failAll = true

		page, err := planner.List(ctx, GalleryQuery{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
	})
}

func TestPlannerSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresIndex", func(t *testing.T) {
		_, planner := seedPlanner(t, nil)
		_, err := planner.Search(ctx, "cat", "", 10)
		assert.ErrorIs(t, err, apperr.ErrIndexUnavailable)
	})

	t.Run("FindsByFilename", func(t *testing.T) {
		index := newFakeIndex()
		_, planner := seedPlanner(t, index)

		items, err := planner.Search(ctx, "clip", "", 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, models.MediaTypeVideo, items[0].MediaType)
	})

	t.Run("RejectsEmptyTerm", func(t *testing.T) {
		index := newFakeIndex()
		_, planner := seedPlanner(t, index)
		_, err := planner.Search(ctx, "   ", "", 10)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})
}

func TestPlannerFolders(t *testing.T) {
	ctx := context.Background()

	t.Run("StoreScanIsMemoized", func(t *testing.T) {
		store := newFakeStore()
		store.put("images", "pets/cat.png", nil)
		store.put("images", "trips/rome/a.png", nil)
		cache := newMemFolderCache()
		planner := NewPlanner(store, nil, cache, zerolog.Nop())

		first, err := planner.Folders(ctx, models.MediaTypeImage)
		require.NoError(t, err)
		second, err := planner.Folders(ctx, models.MediaTypeImage)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, cache.hits, "second call served from cache")

		var paths []string
		for _, s := range second {
			paths = append(paths, s.FolderPath)
		}
		assert.Equal(t, []string{"pets", "trips", "trips/rome"}, paths)
	})

	t.Run("IndexAnswersWhenPresent", func(t *testing.T) {
		index := newFakeIndex()
		_, planner := seedPlanner(t, index)

		summaries, err := planner.Folders(ctx, models.MediaTypeImage)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "/", summaries[0].FolderPath)
		assert.Equal(t, "pets", summaries[1].FolderPath)
	})
}
