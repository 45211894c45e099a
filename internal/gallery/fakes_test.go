package gallery

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"medialab/api/internal/apperr"
	"medialab/api/internal/models"
	"medialab/api/internal/naming"
	"medialab/api/internal/storage"
)

type fakeBlob struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
}

// fakeStore is an in-memory object store with the same contracts as the
// MinIO adapter: delete reports a bool, listing pages with a last-key token,
// missing keys are NotFound.
type fakeStore struct {
	mu    sync.Mutex
	blobs map[string]map[string]*fakeBlob
	media map[string]models.MediaType
	clock time.Time

	failPut    bool
	failDelete bool
	failGet    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blobs: map[string]map[string]*fakeBlob{
			"images": {},
			"videos": {},
		},
		media: map[string]models.MediaType{
			"images": models.MediaTypeImage,
			"videos": models.MediaTypeVideo,
		},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) ContainerFor(mediaType models.MediaType) string {
	if mediaType == models.MediaTypeVideo {
		return "videos"
	}
	return "images"
}

func (s *fakeStore) Containers() map[string]models.MediaType {
	out := make(map[string]models.MediaType, len(s.media))
	for k, v := range s.media {
		out[k] = v
	}
	return out
}

func (s *fakeStore) URL(container, key string) string {
	return "http://store/" + container + "/" + key
}

func (s *fakeStore) Put(_ context.Context, container, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return "", apperr.StoreUnavailable(errors.New("put refused"))
	}
	s.blobs[container][key] = &fakeBlob{
		data:         append([]byte(nil), data...),
		contentType:  contentType,
		metadata:     metadata,
		lastModified: s.tick(),
	}
	return s.URL(container, key), nil
}

func (s *fakeStore) GetContent(_ context.Context, container, key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, "", apperr.StoreUnavailable(errors.New("get refused"))
	}
	blob, ok := s.blobs[container][key]
	if !ok {
		return nil, "", apperr.NotFound("get %s/%s", container, key)
	}
	return blob.data, blob.contentType, nil
}

func (s *fakeStore) GetMetadata(_ context.Context, container, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[container][key]
	if !ok {
		return nil, apperr.NotFound("stat %s/%s", container, key)
	}
	return blob.metadata, nil
}

func (s *fakeStore) SetMetadata(_ context.Context, container, key string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[container][key]
	if !ok {
		return apperr.NotFound("stat %s/%s", container, key)
	}
	blob.metadata = metadata
	return nil
}

func (s *fakeStore) Delete(_ context.Context, container, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return false, apperr.StoreUnavailable(errors.New("delete refused"))
	}
	if _, ok := s.blobs[container][key]; !ok {
		return false, nil
	}
	delete(s.blobs[container], key)
	return true, nil
}

func (s *fakeStore) List(_ context.Context, opts storage.ListOptions) (storage.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	keys := make([]string, 0, len(s.blobs[opts.Container]))
	for key := range s.blobs[opts.Container] {
		if strings.HasPrefix(key, opts.Prefix) && key > opts.PageToken {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var result storage.ListResult
	for _, key := range keys {
		blob := s.blobs[opts.Container][key]
		result.Entries = append(result.Entries, storage.BlobInfo{
			Key:          key,
			Size:         int64(len(blob.data)),
			ContentType:  blob.contentType,
			LastModified: blob.lastModified,
			Metadata:     blob.metadata,
			FolderPath:   storage.FolderPathOf(key),
		})
		if len(result.Entries) >= pageSize {
			if key != keys[len(keys)-1] {
				result.NextPageToken = key
			}
			break
		}
	}
	return result, nil
}

func (s *fakeStore) ListVirtualFolders(_ context.Context, container string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders := make(map[string]struct{})
	for key := range s.blobs[container] {
		idx := strings.LastIndex(key, "/")
		if idx < 0 {
			continue
		}
		parts := strings.Split(key[:idx], "/")
		for i := range parts {
			folders[strings.Join(parts[:i+1], "/")+"/"] = struct{}{}
		}
	}

	out := make([]string, 0, len(folders))
	for f := range folders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) has(container, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[container][key]
	return ok
}

func (s *fakeStore) put(container, key string, metadata map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[container][key] = &fakeBlob{
		data:         []byte("x"),
		contentType:  "application/octet-stream",
		metadata:     metadata,
		lastModified: s.tick(),
	}
}

// fakeIndex is an in-memory metadata index with the postgres adapter's
// contracts: upsert preserves created_at, delete reports a bool, update is a
// field merge that never creates.
type fakeIndex struct {
	mu      sync.Mutex
	records map[string]models.AssetRecord
	upserts int
	deletes int

	failAll bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: map[string]models.AssetRecord{}}
}

func indexKey(id string, mediaType models.MediaType) string {
	return id + "|" + string(mediaType)
}

func (i *fakeIndex) Upsert(_ context.Context, record *models.AssetRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failAll {
		return apperr.IndexUnavailable(errors.New("index down"))
	}
	i.upserts++

	now := time.Now()
	key := indexKey(record.ID, record.MediaType)
	if existing, ok := i.records[key]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	i.records[key] = *record
	return nil
}

func (i *fakeIndex) Get(_ context.Context, id string, mediaType models.MediaType) (*models.AssetRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failAll {
		return nil, apperr.IndexUnavailable(errors.New("index down"))
	}
	record, ok := i.records[indexKey(id, mediaType)]
	if !ok {
		return nil, apperr.NotFound("metadata %s/%s", mediaType, id)
	}
	return &record, nil
}

func (i *fakeIndex) Update(_ context.Context, id string, mediaType models.MediaType, upd models.AssetUpdate) (*models.AssetRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failAll {
		return nil, apperr.IndexUnavailable(errors.New("index down"))
	}
	key := indexKey(id, mediaType)
	record, ok := i.records[key]
	if !ok {
		return nil, apperr.NotFound("metadata %s/%s", mediaType, id)
	}

	if upd.StorageKey != nil {
		record.StorageKey = *upd.StorageKey
	}
	if upd.URL != nil {
		record.URL = *upd.URL
	}
	if upd.FolderPath != nil {
		record.FolderPath = *upd.FolderPath
	}
	if upd.Prompt != nil {
		record.Prompt = *upd.Prompt
	}
	if upd.Summary != nil {
		record.Summary = *upd.Summary
	}
	if upd.Tags != nil {
		record.Tags = *upd.Tags
	}
	record.UpdatedAt = time.Now()
	i.records[key] = record
	return &record, nil
}

func (i *fakeIndex) Delete(_ context.Context, id string, mediaType models.MediaType) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failAll {
		return false, apperr.IndexUnavailable(errors.New("index down"))
	}
	i.deletes++
	key := indexKey(id, mediaType)
	if _, ok := i.records[key]; !ok {
		return false, nil
	}
	delete(i.records, key)
	return true, nil
}

func (i *fakeIndex) Query(_ context.Context, q models.AssetQuery) (*models.AssetPage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failAll {
		return nil, apperr.IndexUnavailable(errors.New("index down"))
	}

	var matched []models.AssetRecord
	for _, record := range i.records {
		if q.MediaType != "" && record.MediaType != q.MediaType {
			continue
		}
		if q.FolderPath != nil && record.FolderPath != *q.FolderPath {
			continue
		}
		if len(q.Tags) > 0 && !overlaps(record.Tags, q.Tags) {
			continue
		}
		matched = append(matched, record)
	}
	sort.Slice(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	total := len(matched)
	start := min(q.Offset, total)
	end := min(start+q.Limit, total)

	return &models.AssetPage{
		Items:   matched[start:end],
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		HasMore: end < total,
	}, nil
}

func (i *fakeIndex) Search(_ context.Context, term string, mediaType models.MediaType, limit int) ([]models.AssetRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failAll {
		return nil, apperr.IndexUnavailable(errors.New("index down"))
	}

	term = strings.ToLower(term)
	var out []models.AssetRecord
	for _, record := range i.records {
		if mediaType != "" && record.MediaType != mediaType {
			continue
		}
		haystack := strings.ToLower(record.Prompt + " " + record.Filename + " " + record.StorageKey)
		if strings.Contains(haystack, term) {
			out = append(out, record)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (i *fakeIndex) Recent(_ context.Context, mediaType models.MediaType, limit int) ([]models.AssetRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failAll {
		return nil, apperr.IndexUnavailable(errors.New("index down"))
	}

	var out []models.AssetRecord
	for _, record := range i.records {
		if mediaType != "" && record.MediaType != mediaType {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (i *fakeIndex) FolderStats(_ context.Context, mediaType models.MediaType) ([]models.FolderStat, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	counts := map[string]int{}
	for _, record := range i.records {
		if mediaType != "" && record.MediaType != mediaType {
			continue
		}
		counts[record.FolderPath]++
	}
	var out []models.FolderStat
	for folder, count := range counts {
		out = append(out, models.FolderStat{FolderPath: folder, Count: count})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out, nil
}

func (i *fakeIndex) FolderSummaries(_ context.Context, mediaType models.MediaType) ([]models.FolderSummary, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	counts := map[string]int{}
	for _, record := range i.records {
		if mediaType != "" && record.MediaType != mediaType {
			continue
		}
		display := "/"
		if record.FolderPath != "" {
			display = strings.TrimSuffix(record.FolderPath, "/")
		}
		counts[display]++
	}
	var out []models.FolderSummary
	for folder, count := range counts {
		out = append(out, models.FolderSummary{FolderPath: folder, AssetCount: count})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FolderPath < out[b].FolderPath })
	return out, nil
}

func (i *fakeIndex) Health(context.Context) error { return nil }

func (i *fakeIndex) record(key string, mediaType models.MediaType) (models.AssetRecord, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	record, ok := i.records[indexKey(naming.AssetIDFromKey(key), mediaType)]
	return record, ok
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
