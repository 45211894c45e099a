// Package storage adapts MinIO into the object-store capability the gallery
// core consumes. The store is the authoritative home of asset bytes; the
// metadata index only mirrors it.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"medialab/api/internal/apperr"
	"medialab/api/internal/config"
	"medialab/api/internal/models"
)

// FolderMarkerSuffix names the zero-byte object that keeps an otherwise
// empty virtual folder listable.
const FolderMarkerSuffix = ".folder"

// BlobInfo is one listed object.
type BlobInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
	FolderPath   string
}

type ListOptions struct {
	Container    string
	Prefix       string
	PageSize     int
	PageToken    string
	Hierarchical bool
}

type ListResult struct {
	Entries        []BlobInfo
	NextPageToken  string
	VirtualFolders []string
}

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{client: client, cfg: cfg}, nil
}

// EnsureContainers creates the per-media-type buckets if absent. Idempotent;
// runs once at startup, not per call.
func (s *ObjectStore) EnsureContainers(ctx context.Context) error {
	for _, bucket := range []string{s.cfg.ImageBucket, s.cfg.VideoBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return apperr.StoreUnavailable(fmt.Errorf("bucket exists %s: %w", bucket, err))
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
				return apperr.StoreUnavailable(fmt.Errorf("create bucket %s: %w", bucket, err))
			}
		}
	}
	return nil
}

// ContainerFor maps a media type onto its physical bucket.
func (s *ObjectStore) ContainerFor(mediaType models.MediaType) string {
	if mediaType == models.MediaTypeVideo {
		return s.cfg.VideoBucket
	}
	return s.cfg.ImageBucket
}

// Containers returns every bucket paired with its media type, for bulk
// sweeps.
func (s *ObjectStore) Containers() map[string]models.MediaType {
	return map[string]models.MediaType{
		s.cfg.ImageBucket: models.MediaTypeImage,
		s.cfg.VideoBucket: models.MediaTypeVideo,
	}
}

// URL builds the externally reachable location of a key.
func (s *ObjectStore) URL(container, key string) string {
	base := strings.TrimSuffix(s.cfg.PublicURL, "/")
	if base == "" {
		base = strings.TrimSuffix(s.cfg.Endpoint, "/")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		scheme := "http"
		if s.cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + base
	}
	return fmt.Sprintf("%s/%s/%s", base, container, key)
}

// Put writes content and metadata at key, overwriting unconditionally.
// Metadata values go through the ASCII sanitization pass first, so encoding
// issues alone never fail a write.
func (s *ObjectStore) Put(ctx context.Context, container, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: SanitizeMetadata(metadata),
	}

	if _, err := s.client.PutObject(ctx, container, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", s.wrapErr("put object", container, key, err)
	}

	return s.URL(container, key), nil
}

func (s *ObjectStore) GetContent(ctx context.Context, container, key string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, container, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", s.wrapErr("get object", container, key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return nil, "", s.wrapErr("stat object", container, key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", s.wrapErr("read object", container, key, err)
	}

	return data, stat.ContentType, nil
}

func (s *ObjectStore) GetMetadata(ctx context.Context, container, key string) (map[string]string, error) {
	stat, err := s.client.StatObject(ctx, container, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.wrapErr("stat object", container, key, err)
	}

	metadata := make(map[string]string, len(stat.UserMetadata))
	for k, v := range stat.UserMetadata {
		metadata[strings.ToLower(k)] = v
	}
	return metadata, nil
}

// SetMetadata replaces the full metadata set on an existing key. MinIO has no
// metadata-only mutation, so this is a server-side self-copy with replaced
// user metadata.
func (s *ObjectStore) SetMetadata(ctx context.Context, container, key string, metadata map[string]string) error {
	src := minio.CopySrcOptions{Bucket: container, Object: key}
	dst := minio.CopyDestOptions{
		Bucket:          container,
		Object:          key,
		UserMetadata:    SanitizeMetadata(metadata),
		ReplaceMetadata: true,
	}

	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		return s.wrapErr("replace metadata", container, key, err)
	}
	return nil
}

// Delete removes a key, reporting false (not an error) when it was already
// absent.
func (s *ObjectStore) Delete(ctx context.Context, container, key string) (bool, error) {
	if _, err := s.client.StatObject(ctx, container, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, s.wrapErr("stat object", container, key, err)
	}

	if err := s.client.RemoveObject(ctx, container, key, minio.RemoveObjectOptions{}); err != nil {
		return false, s.wrapErr("remove object", container, key, err)
	}
	return true, nil
}

// List pages through a container. Hierarchical mode stops at the next path
// segment after the prefix and reports those segments as virtual folders.
// The page token is the last key of the previous page.
func (s *ObjectStore) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 5000 {
		pageSize = 1000
	}

	objects := s.client.ListObjects(ctx, opts.Container, minio.ListObjectsOptions{
		Prefix:       opts.Prefix,
		Recursive:    !opts.Hierarchical,
		StartAfter:   opts.PageToken,
		WithMetadata: true,
	})

	var result ListResult
	folders := make(map[string]struct{})

	for obj := range objects {
		if obj.Err != nil {
			if isNoSuchBucket(obj.Err) {
				return ListResult{}, nil
			}
			return ListResult{}, apperr.StoreUnavailable(fmt.Errorf("list %s: %w", opts.Container, obj.Err))
		}

		// Non-recursive listings surface common prefixes as zero-byte
		// entries with a trailing separator.
		if strings.HasSuffix(obj.Key, "/") {
			folders[obj.Key] = struct{}{}
			continue
		}

		result.Entries = append(result.Entries, blobInfoFrom(obj))

		if len(result.Entries) >= pageSize {
			result.NextPageToken = obj.Key
			break
		}
	}

	for f := range folders {
		result.VirtualFolders = append(result.VirtualFolders, f)
	}
	sort.Strings(result.VirtualFolders)

	return result, nil
}

// ListVirtualFolders scans every key in a container and derives the distinct
// folder prefixes present, ancestors included. Full scan; callers cache.
func (s *ObjectStore) ListVirtualFolders(ctx context.Context, container string) ([]string, error) {
	objects := s.client.ListObjects(ctx, container, minio.ListObjectsOptions{Recursive: true})

	folders := make(map[string]struct{})
	for obj := range objects {
		if obj.Err != nil {
			if isNoSuchBucket(obj.Err) {
				return nil, nil
			}
			return nil, apperr.StoreUnavailable(fmt.Errorf("list folders %s: %w", container, obj.Err))
		}

		idx := strings.LastIndex(obj.Key, "/")
		if idx < 0 {
			continue
		}

		parts := strings.Split(obj.Key[:idx], "/")
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

// IsFolderMarker reports whether a key is a folder placeholder rather than
// an asset.
func IsFolderMarker(key string) bool {
	return strings.HasSuffix(key, FolderMarkerSuffix)
}

// FolderPathOf extracts the folder prefix of a key ("" for root).
func FolderPathOf(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return ""
	}
	return key[:idx+1]
}

func blobInfoFrom(obj minio.ObjectInfo) BlobInfo {
	metadata := make(map[string]string, len(obj.UserMetadata))
	for k, v := range obj.UserMetadata {
		metadata[strings.ToLower(strings.TrimPrefix(k, "X-Amz-Meta-"))] = v
	}

	return BlobInfo{
		Key:          obj.Key,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		LastModified: obj.LastModified,
		Metadata:     metadata,
		FolderPath:   FolderPathOf(obj.Key),
	}
}

func (s *ObjectStore) wrapErr(op, container, key string, err error) error {
	if isNoSuchKey(err) {
		return apperr.NotFound("%s %s/%s", op, container, key)
	}
	return apperr.StoreUnavailable(fmt.Errorf("%s %s/%s: %w", op, container, key, err))
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

func isNoSuchBucket(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchBucket"
}
