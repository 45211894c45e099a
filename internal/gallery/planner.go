package gallery

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"medialab/api/internal/apperr"
	"medialab/api/internal/models"
	"medialab/api/internal/naming"
	"medialab/api/internal/storage"
)

// Planner answers gallery reads. Each request is routed down exactly one
// path: the index when one is configured and no store continuation token is
// in play, the store otherwise. The two pagination schemes never mix within
// a response.
type Planner struct {
	store   BlobStore
	index   MetadataIndex
	folders FolderCache
	log     zerolog.Logger
}

func NewPlanner(store BlobStore, index MetadataIndex, folders FolderCache, log zerolog.Logger) *Planner {
	return &Planner{store: store, index: index, folders: folders, log: log}
}

// GalleryQuery filters a gallery listing. Empty MediaType spans both
// containers. A nil FolderPath means any folder; a pointer to "" means root
// only. ContinuationToken forces the store path.
type GalleryQuery struct {
	MediaType         models.MediaType
	FolderPath        *string
	Tags              []string
	Limit             int
	Offset            int
	ContinuationToken string
}

// List plans and executes one gallery page.
func (p *Planner) List(ctx context.Context, q GalleryQuery) (*models.GalleryPage, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.FolderPath != nil {
		normalized := naming.NormalizeFolderPath(*q.FolderPath)
		q.FolderPath = &normalized
	}

	if p.index != nil && q.ContinuationToken == "" {
		page, err := p.listFromIndex(ctx, q)
		if err == nil {
			return page, nil
		}
		if errors.Is(err, apperr.ErrInvalidArgument) {
			return nil, err
		}
		p.log.Warn().Err(err).Msg("index listing failed, falling back to store scan")
	}

	return p.listFromStore(ctx, q)
}

// Search is index-only: substring search over the text fields. Without an
// index configured there is nothing to search.
func (p *Planner) Search(ctx context.Context, term string, mediaType models.MediaType, limit int) ([]models.GalleryItem, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.InvalidArgument("empty search term")
	}
	if p.index == nil {
		return nil, apperr.IndexUnavailable(errors.New("metadata index not configured"))
	}

	records, err := p.index.Search(ctx, term, mediaType, limit)
	if err != nil {
		return nil, err
	}

	items := make([]models.GalleryItem, 0, len(records))
	for _, r := range records {
		items = append(items, itemFromRecord(r))
	}
	return items, nil
}

// Folders lists the distinct virtual folders. The index answers when
// present; otherwise the store is scanned, memoized through the folder
// cache.
func (p *Planner) Folders(ctx context.Context, mediaType models.MediaType) ([]models.FolderSummary, error) {
	if p.index != nil {
		summaries, err := p.index.FolderSummaries(ctx, mediaType)
		if err == nil {
			return summaries, nil
		}
		p.log.Warn().Err(err).Msg("index folder listing failed, falling back to store scan")
	}
	return p.foldersFromStore(ctx, mediaType)
}

func (p *Planner) listFromIndex(ctx context.Context, q GalleryQuery) (*models.GalleryPage, error) {
	page, err := p.index.Query(ctx, models.AssetQuery{
		MediaType:  q.MediaType,
		FolderPath: q.FolderPath,
		Tags:       q.Tags,
		Limit:      q.Limit,
		Offset:     q.Offset,
		OrderBy:    "created_at",
		OrderDesc:  true,
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.GalleryItem, 0, len(page.Items))
	for _, r := range page.Items {
		items = append(items, itemFromRecord(r))
	}

	return &models.GalleryPage{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}

// listFromStore fans out across the relevant containers, merges, sorts by
// recency and slices the requested window. A continuation token pins the
// listing to a single container; offset paging is ignored while a token is
// in play.
func (p *Planner) listFromStore(ctx context.Context, q GalleryQuery) (*models.GalleryPage, error) {
	var prefix string
	if q.FolderPath != nil {
		prefix = *q.FolderPath
	}

	containers := p.containersFor(q.MediaType)

	if q.ContinuationToken != "" {
		container, token, ok := splitStoreToken(q.ContinuationToken)
		if !ok {
			return nil, apperr.InvalidArgument("malformed continuation token")
		}
		mediaType, known := containers[container]
		if !known {
			return nil, apperr.InvalidArgument("continuation token container %q out of scope", container)
		}

		result, err := p.store.List(ctx, storage.ListOptions{
			Container: container,
			Prefix:    prefix,
			PageSize:  q.Limit,
			PageToken: token,
		})
		if err != nil {
			return nil, err
		}

		items := itemsFromEntries(p.store, container, mediaType, result.Entries, q.FolderPath)
		page := &models.GalleryPage{Items: items, Total: len(items), Limit: q.Limit}
		if result.NextPageToken != "" {
			page.ContinuationToken = joinStoreToken(container, result.NextPageToken)
		}
		return page, nil
	}

	// Fresh scan: pull enough from each container to satisfy offset+limit
	// after the merge. Folder markers are filtered out post-listing, so each
	// container is paged until the window is full or the listing ends.
	fetch := q.Offset + q.Limit
	var merged []models.GalleryItem
	var nextToken string
	tokenCandidates := 0

	for container, mediaType := range containers {
		items, containerToken, err := p.scanContainer(ctx, container, mediaType, prefix, q.FolderPath, fetch)
		if err != nil {
			return nil, err
		}

		merged = append(merged, items...)
		if containerToken != "" {
			nextToken = joinStoreToken(container, containerToken)
			tokenCandidates++
		}
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].LastModified.After(merged[b].LastModified)
	})

	total := len(merged)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	page := &models.GalleryPage{
		Items:  merged[start:end],
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	// A token is only honest when a single container produced one; a merged
	// multi-container token cannot resume deterministically, so clients
	// continue with offset paging instead.
	if tokenCandidates == 1 {
		page.ContinuationToken = nextToken
	}
	return page, nil
}

// scanContainer pages a container until it has collected want gallery items
// or the listing is exhausted. The returned token resumes the scan when the
// window filled before the end.
func (p *Planner) scanContainer(ctx context.Context, container string, mediaType models.MediaType, prefix string, folder *string, want int) ([]models.GalleryItem, string, error) {
	var items []models.GalleryItem
	var token string

	for {
		result, err := p.store.List(ctx, storage.ListOptions{
			Container: container,
			Prefix:    prefix,
			PageSize:  want,
			PageToken: token,
		})
		if err != nil {
			return nil, "", err
		}

		items = append(items, itemsFromEntries(p.store, container, mediaType, result.Entries, folder)...)
		if result.NextPageToken == "" {
			return items, "", nil
		}
		token = result.NextPageToken
		if len(items) >= want {
			return items, token, nil
		}
	}
}

func (p *Planner) foldersFromStore(ctx context.Context, mediaType models.MediaType) ([]models.FolderSummary, error) {
	cacheKey := "folders:" + string(mediaType)
	if p.folders != nil {
		if cached, ok := p.folders.GetFolders(ctx, cacheKey); ok {
			return summariesFromPaths(cached), nil
		}
	}

	distinct := make(map[string]struct{})
	for container := range p.containersFor(mediaType) {
		paths, err := p.store.ListVirtualFolders(ctx, container)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			distinct[path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(distinct))
	for path := range distinct {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if p.folders != nil {
		p.folders.SetFolders(ctx, cacheKey, paths)
	}
	return summariesFromPaths(paths), nil
}

// InvalidateFolders drops the memoized folder scan after a mutation that can
// change the folder set.
func (p *Planner) InvalidateFolders(ctx context.Context, mediaType models.MediaType) {
	if p.folders == nil {
		return
	}
	p.folders.Invalidate(ctx, "folders:"+string(mediaType))
	p.folders.Invalidate(ctx, "folders:")
}

func (p *Planner) containersFor(mediaType models.MediaType) map[string]models.MediaType {
	all := p.store.Containers()
	if mediaType == "" {
		return all
	}
	scoped := make(map[string]models.MediaType, 1)
	for container, mt := range all {
		if mt == mediaType {
			scoped[container] = mt
		}
	}
	return scoped
}

func itemsFromEntries(store BlobStore, container string, mediaType models.MediaType, entries []storage.BlobInfo, folder *string) []models.GalleryItem {
	items := make([]models.GalleryItem, 0, len(entries))
	for _, entry := range entries {
		if storage.IsFolderMarker(entry.Key) {
			continue
		}
		// Prefix listing matches subfolders too; an exact folder filter
		// keeps only direct children.
		if folder != nil && entry.FolderPath != *folder {
			continue
		}
		items = append(items, models.GalleryItem{
			ID:           naming.AssetIDFromKey(entry.Key),
			Name:         entry.Key,
			MediaType:    mediaType,
			URL:          store.URL(container, entry.Key),
			Container:    container,
			Size:         entry.Size,
			ContentType:  entry.ContentType,
			CreationTime: entry.LastModified,
			LastModified: entry.LastModified,
			Metadata:     entry.Metadata,
			FolderPath:   entry.FolderPath,
		})
	}
	return items
}

func itemFromRecord(r models.AssetRecord) models.GalleryItem {
	return models.GalleryItem{
		ID:           r.ID,
		Name:         r.StorageKey,
		MediaType:    r.MediaType,
		URL:          r.URL,
		Container:    r.Container,
		Size:         r.Size,
		ContentType:  r.ContentType,
		CreationTime: r.CreatedAt,
		LastModified: r.UpdatedAt,
		Metadata:     r.CustomMetadata,
		FolderPath:   r.FolderPath,
	}
}

func summariesFromPaths(paths []string) []models.FolderSummary {
	out := make([]models.FolderSummary, 0, len(paths))
	for _, path := range paths {
		out = append(out, models.FolderSummary{
			FolderPath: strings.TrimSuffix(path, "/"),
		})
	}
	return out
}

const storeTokenSep = "|"

func joinStoreToken(container, token string) string {
	return container + storeTokenSep + token
}

func splitStoreToken(joined string) (container, token string, ok bool) {
	container, token, ok = strings.Cut(joined, storeTokenSep)
	if !ok || container == "" || token == "" {
		return "", "", false
	}
	return container, token, true
}
