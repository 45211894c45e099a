package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"medialab/api/internal/apperr"
	"medialab/api/internal/gallery"
	"medialab/api/internal/media/sniffer"
	"medialab/api/internal/models"
	"medialab/api/internal/naming"
)

// uploadExtensions is the per-media-type extension allow-list for direct
// uploads. Generated assets bypass it; user files do not.
var uploadExtensions = map[models.MediaType]map[string]bool{
	models.MediaTypeImage: {
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	},
	models.MediaTypeVideo: {
		".mp4": true, ".webm": true, ".mov": true, ".avi": true,
	},
}

// validateUpload checks the declared extension against the allow-list and the
// actual bytes against their magic numbers. Returns the sniffed content type,
// which is trusted over anything the client declared.
func validateUpload(mediaType models.MediaType, filename string, data []byte) (string, error) {
	_, ext := naming.SplitExt(filename)
	if !uploadExtensions[mediaType][ext] {
		return "", apperr.InvalidArgument("extension %q is not allowed for %s uploads", ext, mediaType)
	}

	result, err := sniffer.DetectHead(data)
	if err != nil {
		return "", apperr.InvalidArgument("unrecognized file content")
	}
	if result.Video != (mediaType == models.MediaTypeVideo) {
		return "", apperr.InvalidArgument("file content is %s, which is not a valid %s", result.MIME, mediaType)
	}
	return result.MIME, nil
}

// UploadAsset ingests a user-supplied file via multipart form. The file lands
// in the store under a collision-safe key and is mirrored into the index.
func (h HandlerSet) UploadAsset(c *gin.Context) {
	mediaType, err := validMediaType(c.PostForm("mediaType"))
	if err != nil {
		h.fail(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.fail(c, apperr.InvalidArgument("file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, apperr.InvalidArgument("unreadable file part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, err)
		return
	}

	contentType, err := validateUpload(mediaType, fileHeader.Filename, data)
	if err != nil {
		h.fail(c, err)
		return
	}

	asset, err := h.service.CreateAsset(c.Request.Context(), gallery.CreateAssetInput{
		MediaType:   mediaType,
		FolderPath:  c.PostForm("folder"),
		Filename:    fileHeader.Filename,
		Data:        data,
		ContentType: contentType,
		Prompt:      c.PostForm("prompt"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.planner.InvalidateFolders(c.Request.Context(), mediaType)
	c.JSON(http.StatusCreated, asset)
}
