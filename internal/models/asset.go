package models

import "time"

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

func (m MediaType) Valid() bool {
	return m == MediaTypeImage || m == MediaTypeVideo
}

// Asset describes a stored blob as reported by the object store after a
// mutating operation.
type Asset struct {
	ID          string            `json:"id"`
	MediaType   MediaType         `json:"mediaType"`
	StorageKey  string            `json:"storageKey"`
	Container   string            `json:"container"`
	URL         string            `json:"url"`
	Size        int64             `json:"size"`
	ContentType string            `json:"contentType"`
	FolderPath  string            `json:"folderPath"`
	Metadata    map[string]string `json:"metadata"`
}

// AssetRecord is the metadata index document mirroring one asset. The
// composite key is (ID, MediaType); MediaType doubles as the partition
// dimension.
type AssetRecord struct {
	ID             string            `json:"id"`
	MediaType      MediaType         `json:"mediaType"`
	StorageKey     string            `json:"storageKey"`
	Container      string            `json:"container"`
	URL            string            `json:"url"`
	Filename       string            `json:"filename"`
	Size           int64             `json:"size"`
	ContentType    string            `json:"contentType"`
	FolderPath     string            `json:"folderPath"`
	Prompt         string            `json:"prompt,omitempty"`
	Model          string            `json:"model,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	Description    string            `json:"description,omitempty"`
	GenerationID   string            `json:"generationId,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	CustomMetadata map[string]string `json:"customMetadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// AssetUpdate is a field-level partial update of an AssetRecord. Nil fields
// are left untouched; this is the one place in the system with merge
// semantics (blob metadata is always full-replace).
type AssetUpdate struct {
	StorageKey     *string
	URL            *string
	Filename       *string
	Size           *int64
	ContentType    *string
	FolderPath     *string
	Prompt         *string
	Model          *string
	Summary        *string
	Description    *string
	GenerationID   *string
	Tags           *[]string
	CustomMetadata *map[string]string
}

// AssetQuery filters an index listing. A nil FolderPath means "any folder";
// a pointer to "" matches only root. Tags match with OR semantics.
type AssetQuery struct {
	MediaType  MediaType
	FolderPath *string
	Tags       []string
	Limit      int
	Offset     int
	OrderBy    string
	OrderDesc  bool
}

type AssetPage struct {
	Items   []AssetRecord `json:"items"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"hasMore"`
}

type FolderStat struct {
	FolderPath string `json:"folderPath"`
	Count      int    `json:"count"`
}

// FolderSummary is the folder-tree view: per-folder asset counts aggregated
// across media types. Root is reported as "/".
type FolderSummary struct {
	FolderPath string   `json:"folderPath"`
	AssetCount int      `json:"assetCount"`
	MediaTypes []string `json:"mediaTypes"`
}

// GalleryItem is the unified read shape produced by the query planner from
// either the index or a live store listing.
type GalleryItem struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	MediaType    MediaType         `json:"mediaType"`
	URL          string            `json:"url"`
	Container    string            `json:"container"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"contentType"`
	CreationTime time.Time         `json:"creationTime"`
	LastModified time.Time         `json:"lastModified"`
	Metadata     map[string]string `json:"metadata"`
	FolderPath   string            `json:"folderPath"`
}

type GalleryPage struct {
	Items             []GalleryItem `json:"items"`
	Total             int           `json:"total"`
	Limit             int           `json:"limit"`
	Offset            int           `json:"offset"`
	ContinuationToken string        `json:"continuationToken,omitempty"`
	Folders           []string      `json:"folders,omitempty"`
}
