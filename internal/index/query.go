package index

import (
	"fmt"
	"strings"

	"medialab/api/internal/models"
)

// buildAssetFilter renders the WHERE clause for an AssetQuery. A nil
// FolderPath means "any folder"; a pointer to "" matches only root. Tags use
// array overlap, so a record matches when it carries ANY requested tag.
func buildAssetFilter(q models.AssetQuery) (string, []any) {
	var conds []string
	var args []any

	if q.MediaType != "" {
		args = append(args, q.MediaType)
		conds = append(conds, fmt.Sprintf("media_type = $%d", len(args)))
	}
	if q.FolderPath != nil {
		args = append(args, *q.FolderPath)
		conds = append(conds, fmt.Sprintf("folder_path = $%d", len(args)))
	}
	if len(q.Tags) > 0 {
		args = append(args, q.Tags)
		conds = append(conds, fmt.Sprintf("tags && $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

var searchColumns = []string{"prompt", "filename", "storage_key", "summary", "description"}

func buildSearchFilter(term string, mediaType models.MediaType) (string, []any) {
	pattern := "%" + escapeLike(term) + "%"
	args := []any{pattern}

	fields := make([]string, len(searchColumns))
	for i, col := range searchColumns {
		fields[i] = col + " ILIKE $1"
	}
	cond := "(" + strings.Join(fields, " OR ") + ")"

	if mediaType != "" {
		args = append(args, mediaType)
		cond += fmt.Sprintf(" AND media_type = $%d", len(args))
	}
	return "WHERE " + cond, args
}

// escapeLike neutralizes LIKE wildcards so a search term is always a literal
// substring match.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildUpdateSet renders the SET fragment for the non-nil fields of upd.
// Returned placeholders start at $1; callers append their own key arguments
// after.
func buildUpdateSet(upd models.AssetUpdate) (string, []any) {
	var set []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.StorageKey != nil {
		add("storage_key", *upd.StorageKey)
	}
	if upd.URL != nil {
		add("url", *upd.URL)
	}
	if upd.Filename != nil {
		add("filename", *upd.Filename)
	}
	if upd.Size != nil {
		add("size", *upd.Size)
	}
	if upd.ContentType != nil {
		add("content_type", *upd.ContentType)
	}
	if upd.FolderPath != nil {
		add("folder_path", *upd.FolderPath)
	}
	if upd.Prompt != nil {
		add("prompt", *upd.Prompt)
	}
	if upd.Model != nil {
		add("model", *upd.Model)
	}
	if upd.Summary != nil {
		add("summary", *upd.Summary)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.GenerationID != nil {
		add("generation_id", *upd.GenerationID)
	}
	if upd.Tags != nil {
		add("tags", *upd.Tags)
	}
	if upd.CustomMetadata != nil {
		add("custom_metadata", *upd.CustomMetadata)
	}

	return strings.Join(set, ", "), args
}

// orderColumn whitelists sortable columns; anything else sorts by recency.
func orderColumn(requested string) string {
	switch requested {
	case "created_at", "updated_at", "size", "filename":
		return requested
	default:
		return "created_at"
	}
}

func orderDirection(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}
