package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"medialab/api/internal/apperr"
	"medialab/api/internal/config"
	"medialab/api/internal/gallery"
	"medialab/api/internal/models"
	"medialab/api/internal/providers/imagegen"
	"medialab/api/internal/providers/videogen"
	"medialab/api/internal/providers/vision"
	"medialab/api/internal/storage"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	store    *storage.ObjectStore
	index    gallery.MetadataIndex
	service  *gallery.Service
	planner  *gallery.Planner
	runner   *gallery.Runner
	imageGen *imagegen.Client
	videoGen *videogen.Client
	vision   *vision.Client
	db       *pgxpool.Pool
	cache    *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	store *storage.ObjectStore,
	index gallery.MetadataIndex,
	service *gallery.Service,
	planner *gallery.Planner,
	runner *gallery.Runner,
	imageGen *imagegen.Client,
	videoGen *videogen.Client,
	visionClient *vision.Client,
	db *pgxpool.Pool,
	cache *redis.Client,
) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		store:    store,
		index:    index,
		service:  service,
		planner:  planner,
		runner:   runner,
		imageGen: imageGen,
		videoGen: videoGen,
		vision:   visionClient,
		db:       db,
		cache:    cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	galleryGroup := v1.Group("/gallery")
	{
		galleryGroup.GET("", h.ListGallery)
		galleryGroup.POST("/upload", h.UploadAsset)
		galleryGroup.GET("/search", h.SearchGallery)
		galleryGroup.GET("/folders", h.ListFolders)
		galleryGroup.POST("/folders", h.CreateFolder)
		galleryGroup.GET("/asset", h.GetAssetContent)
		galleryGroup.DELETE("/asset", h.DeleteAsset)
		galleryGroup.POST("/asset/move", h.MoveAsset)
	}

	metadata := v1.Group("/metadata")
	{
		metadata.GET("", h.GetMetadata)
		metadata.PATCH("", h.UpdateMetadata)
		metadata.GET("/recent", h.RecentAssets)
		metadata.GET("/stats/folders", h.FolderStats)
	}

	batch := v1.Group("/batch")
	{
		batch.POST("/delete", h.BatchDelete)
		batch.POST("/move", h.BatchMove)
		batch.POST("/sync", h.SyncIndex)
	}

	images := v1.Group("/images")
	{
		images.POST("/generate", h.GenerateImages)
		images.POST("/edit", h.EditImages)
		images.POST("/enhance-prompt", h.EnhancePrompt)
		images.POST("/analyze", h.AnalyzeImage)
	}

	videos := v1.Group("/videos")
	{
		videos.POST("/jobs", h.CreateVideoJob)
		videos.GET("/jobs", h.ListVideoJobs)
		videos.GET("/jobs/:jobId", h.GetVideoJob)
		videos.DELETE("/jobs/:jobId", h.DeleteVideoJob)
		videos.POST("/jobs/:jobId/save", h.SaveVideoJob)
	}
}

var errNoIndex = errors.New("metadata index not configured")

// fail translates the error taxonomy onto HTTP statuses.
func (h HandlerSet) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrIndexUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrStoreUnavailable):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// validMediaType parses a mediaType taken from a request body.
func validMediaType(raw string) (models.MediaType, error) {
	mediaType := models.MediaType(raw)
	if !mediaType.Valid() {
		return "", apperr.InvalidArgument("media type %q", raw)
	}
	return mediaType, nil
}

// mediaTypeParam reads and validates the mediaType query parameter.
// required=false admits the empty value, meaning both media types.
func mediaTypeParam(c *gin.Context, required bool) (models.MediaType, error) {
	raw := c.Query("mediaType")
	if raw == "" {
		if required {
			return "", apperr.InvalidArgument("mediaType is required")
		}
		return "", nil
	}
	mediaType := models.MediaType(raw)
	if !mediaType.Valid() {
		return "", apperr.InvalidArgument("media type %q", raw)
	}
	return mediaType, nil
}
