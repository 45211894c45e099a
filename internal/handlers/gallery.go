package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medialab/api/internal/apperr"
	"medialab/api/internal/gallery"
)

// ListGallery serves one gallery page. Pagination is either offset/limit or
// a continuation token, never both within a response.
func (h HandlerSet) ListGallery(c *gin.Context) {
	mediaType, err := mediaTypeParam(c, false)
	if err != nil {
		h.fail(c, err)
		return
	}

	q := gallery.GalleryQuery{
		MediaType:         mediaType,
		Limit:             intQuery(c, "limit", 50),
		Offset:            intQuery(c, "offset", 0),
		ContinuationToken: c.Query("continuationToken"),
	}
	if folder, ok := c.GetQuery("folder"); ok {
		q.FolderPath = &folder
	}
	if tags, ok := c.GetQueryArray("tag"); ok {
		q.Tags = tags
	}

	page, err := h.planner.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h HandlerSet) SearchGallery(c *gin.Context) {
	mediaType, err := mediaTypeParam(c, false)
	if err != nil {
		h.fail(c, err)
		return
	}

	items, err := h.planner.Search(c.Request.Context(), c.Query("q"), mediaType, intQuery(c, "limit", 50))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h HandlerSet) ListFolders(c *gin.Context) {
	mediaType, err := mediaTypeParam(c, false)
	if err != nil {
		h.fail(c, err)
		return
	}

	folders, err := h.planner.Folders(c.Request.Context(), mediaType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

func (h HandlerSet) CreateFolder(c *gin.Context) {
	var req struct {
		MediaType  string `json:"mediaType" binding:"required"`
		FolderPath string `json:"folderPath" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mediaType, err := validMediaType(req.MediaType)
	if err != nil {
		h.fail(c, err)
		return
	}

	folder, err := h.service.CreateFolder(c.Request.Context(), mediaType, req.FolderPath)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.planner.InvalidateFolders(c.Request.Context(), mediaType)
	c.JSON(http.StatusCreated, gin.H{"folderPath": folder})
}

func (h HandlerSet) GetAssetContent(c *gin.Context) {
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

	data, contentType, err := h.service.GetContent(c.Request.Context(), mediaType, key)
	if err != nil {
		h.fail(c, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h HandlerSet) DeleteAsset(c *gin.Context) {
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

	deleted, err := h.service.DeleteAsset(c.Request.Context(), mediaType, key)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "key": key})
}

func (h HandlerSet) MoveAsset(c *gin.Context) {
	var req struct {
		MediaType  string `json:"mediaType" binding:"required"`
		SourceKey  string `json:"sourceKey" binding:"required"`
		DestFolder string `json:"destFolder"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mediaType, err := validMediaType(req.MediaType)
	if err != nil {
		h.fail(c, err)
		return
	}

	asset, err := h.service.MoveAsset(c.Request.Context(), mediaType, req.SourceKey, req.DestFolder)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.planner.InvalidateFolders(c.Request.Context(), mediaType)
	c.JSON(http.StatusOK, asset)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
