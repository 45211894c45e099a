package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medialab/api/internal/apperr"
	"medialab/api/internal/gallery"
	"medialab/api/internal/models"
	"medialab/api/internal/providers/videogen"
)

type createVideoJobRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	NSeconds  int    `json:"nSeconds"`
	Height    int    `json:"height"`
	Width     int    `json:"width"`
	NVariants int    `json:"nVariants"`
	Enhance   bool   `json:"enhance"`
}

func (h HandlerSet) CreateVideoJob(c *gin.Context) {
	var req createVideoJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	prompt := req.Prompt
	if req.Enhance && h.vision.Configured() {
		enhanced, err := h.vision.EnhancePrompt(ctx, prompt)
		if err != nil {
			h.log.Warn().Err(err).Msg("prompt enhancement failed, using original prompt")
		} else {
			prompt = enhanced
		}
	}

	if req.NSeconds <= 0 {
		req.NSeconds = 5
	}
	if req.Height <= 0 {
		req.Height = 720
	}
	if req.Width <= 0 {
		req.Width = 1280
	}

	job, err := h.videoGen.CreateJob(ctx, videogen.CreateJobRequest{
		Prompt:    prompt,
		NSeconds:  req.NSeconds,
		Height:    req.Height,
		Width:     req.Width,
		NVariants: req.NVariants,
	})
	if err != nil {
		h.fail(c, fmt.Errorf("create video job: %w", err))
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h HandlerSet) GetVideoJob(c *gin.Context) {
	job, err := h.videoGen.GetJob(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		h.fail(c, fmt.Errorf("get video job: %w", err))
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h HandlerSet) ListVideoJobs(c *gin.Context) {
	var statuses []string
	if raw := c.Query("statuses"); raw != "" {
		statuses = strings.Split(raw, ",")
	}

	list, err := h.videoGen.ListJobs(c.Request.Context(), intQuery(c, "limit", 10), statuses)
	if err != nil {
		h.fail(c, fmt.Errorf("list video jobs: %w", err))
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h HandlerSet) DeleteVideoJob(c *gin.Context) {
	if err := h.videoGen.DeleteJob(c.Request.Context(), c.Param("jobId")); err != nil {
		h.fail(c, fmt.Errorf("delete video job: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type saveVideoJobRequest struct {
	FolderPath string `json:"folderPath"`
	Filename   string `json:"filename"`
}

// SaveVideoJob waits for a job to finish within the poll budget, downloads
// every generation and writes each into the video gallery.
func (h HandlerSet) SaveVideoJob(c *gin.Context) {
	var req saveVideoJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	ctx := c.Request.Context()
	jobID := c.Param("jobId")

	job, err := h.videoGen.WaitForCompletion(ctx, jobID)
	if err != nil {
		h.fail(c, fmt.Errorf("wait for video job: %w", err))
		return
	}
	if job.Status != videogen.StatusSucceeded {
		h.fail(c, apperr.Conflict("video job %s finished as %s: %s", jobID, job.Status, job.FailureReason))
		return
	}
	if len(job.Generations) == 0 {
		h.fail(c, apperr.NotFound("video job %s has no generations", jobID))
		return
	}

	var saved []models.Asset
	failures := map[string]string{}

	for i, gen := range job.Generations {
		data, err := h.videoGen.DownloadVideo(ctx, gen.ID)
		if err != nil {
			failures[gen.ID] = err.Error()
			continue
		}

		filename := req.Filename
		if filename == "" {
			filename = gen.ID + ".mp4"
		} else if len(job.Generations) > 1 {
			filename = fmt.Sprintf("%s_%d.mp4", strings.TrimSuffix(filename, ".mp4"), i+1)
		}

		asset, err := h.service.CreateAsset(ctx, gallery.CreateAssetInput{
			MediaType:    models.MediaTypeVideo,
			FolderPath:   req.FolderPath,
			Filename:     filename,
			Data:         data,
			ContentType:  "video/mp4",
			Prompt:       job.Prompt,
			Model:        h.cfg.Providers.VideoGen.Deployment,
			GenerationID: gen.ID,
		})
		if err != nil {
			failures[gen.ID] = err.Error()
			continue
		}
		saved = append(saved, *asset)
	}

	if len(saved) == 0 {
		h.fail(c, apperr.StoreUnavailable(fmt.Errorf("no generation of job %s could be stored", jobID)))
		return
	}

	h.planner.InvalidateFolders(ctx, models.MediaTypeVideo)
	c.JSON(http.StatusCreated, gin.H{"jobId": jobID, "assets": saved, "failures": failures})
}
