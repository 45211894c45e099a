package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medialab/api/internal/apperr"
	"medialab/api/internal/models"
)

// GetMetadata returns both views of an asset: the blob metadata and, when an
// index is configured, the indexed record.
func (h HandlerSet) GetMetadata(c *gin.Context) {
	mediaType, err := mediaTypeParam(c, true)
	if err != nil {
		h.fail(c, err)
		return
	}
	key := c.Query("key")
	if key == "" {
		h.fail(c, apperr.InvalidArgument("key is required"))
		return
	}

	blobMeta, record, err := h.service.GetMetadata(c.Request.Context(), mediaType, key)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"key": key, "blobMetadata": blobMeta}
	if record != nil {
		resp["record"] = record
	}
	c.JSON(http.StatusOK, resp)
}

type updateMetadataRequest struct {
	MediaType    string             `json:"mediaType" binding:"required"`
	Key          string             `json:"key" binding:"required"`
	BlobMetadata map[string]string  `json:"blobMetadata"`
	Prompt       *string            `json:"prompt"`
	Summary      *string            `json:"summary"`
	Description  *string            `json:"description"`
	Tags         *[]string          `json:"tags"`
	Custom       *map[string]string `json:"customMetadata"`
}

// UpdateMetadata applies both write disciplines in one call: blobMetadata,
// when present, replaces the blob's metadata set wholesale; the remaining
// fields merge into the index record.
func (h HandlerSet) UpdateMetadata(c *gin.Context) {
	var req updateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mediaType, err := validMediaType(req.MediaType)
	if err != nil {
		h.fail(c, err)
		return
	}

	upd := models.AssetUpdate{
		Prompt:         req.Prompt,
		Summary:        req.Summary,
		Description:    req.Description,
		Tags:           req.Tags,
		CustomMetadata: req.Custom,
	}

	record, err := h.service.UpdateMetadata(c.Request.Context(), mediaType, req.Key, req.BlobMetadata, upd)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"key": req.Key, "updated": true}
	if record != nil {
		resp["record"] = record
	}
	c.JSON(http.StatusOK, resp)
}

// RecentAssets lists the newest index records. Index-only: without an index
// there is no creation-time ordering to serve.
func (h HandlerSet) RecentAssets(c *gin.Context) {
	if h.index == nil {
		h.fail(c, apperr.IndexUnavailable(errNoIndex))
		return
	}
	mediaType, err := mediaTypeParam(c, false)
	if err != nil {
		h.fail(c, err)
		return
	}

	records, err := h.index.Recent(c.Request.Context(), mediaType, intQuery(c, "limit", 20))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records, "count": len(records)})
}

// FolderStats reports per-folder asset counts from the index.
func (h HandlerSet) FolderStats(c *gin.Context) {
	if h.index == nil {
		h.fail(c, apperr.IndexUnavailable(errNoIndex))
		return
	}
	mediaType, err := mediaTypeParam(c, false)
	if err != nil {
		h.fail(c, err)
		return
	}

	stats, err := h.index.FolderStats(c.Request.Context(), mediaType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": stats})
}
