package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"medialab/api/internal/apperr"
	"medialab/api/internal/gallery"
	"medialab/api/internal/ids"
	"medialab/api/internal/media/sniffer"
	"medialab/api/internal/models"
	"medialab/api/internal/providers/imagegen"
)

type generateImagesRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	N          int    `json:"n"`
	Size       string `json:"size"`
	Quality    string `json:"quality"`
	FolderPath string `json:"folderPath"`
	Enhance    bool   `json:"enhance"`
	Analyze    bool   `json:"analyze"`
}

// GenerateImages runs the full generation flow: optional prompt
// enhancement, image generation, optional analysis, and a gallery write for
// every produced image. Images that fail to persist are reported per item.
func (h HandlerSet) GenerateImages(c *gin.Context) {
	var req generateImagesRequest
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

	images, err := h.imageGen.Generate(ctx, imagegen.GenerateRequest{
		Prompt:       prompt,
		N:            req.N,
		Size:         req.Size,
		Quality:      req.Quality,
		OutputFormat: "png",
	})
	if err != nil {
		h.fail(c, fmt.Errorf("generate images: %w", err))
		return
	}

	generationID := ids.New()
	var saved []models.Asset
	failures := map[int]string{}

	for i, data := range images {
		input := gallery.CreateAssetInput{
			MediaType:    models.MediaTypeImage,
			FolderPath:   req.FolderPath,
			Data:         data,
			ContentType:  "image/png",
			Prompt:       prompt,
			Model:        h.cfg.Providers.ImageGen.Deployment,
			GenerationID: generationID,
		}

		if h.vision.Configured() {
			if name, err := h.vision.SuggestFilename(ctx, prompt); err == nil && name != "" {
				input.Filename = name + ".png"
			}
			if req.Analyze {
				if analysis, err := h.vision.AnalyzeImage(ctx, data, "image/png"); err == nil {
					input.Summary = analysis.Summary
					input.Description = analysis.Description
					input.Tags = analysis.Tags
				} else {
					h.log.Warn().Err(err).Msg("image analysis failed, saving without it")
				}
			}
		}

		asset, err := h.service.CreateAsset(ctx, input)
		if err != nil {
			failures[i] = err.Error()
			continue
		}
		saved = append(saved, *asset)
	}

	if len(saved) == 0 {
		h.fail(c, apperr.StoreUnavailable(fmt.Errorf("no generated image could be stored")))
		return
	}

	h.planner.InvalidateFolders(ctx, models.MediaTypeImage)
	c.JSON(http.StatusCreated, gin.H{
		"generationId": generationID,
		"prompt":       prompt,
		"assets":       saved,
		"failures":     failures,
	})
}

// EditImages reworks uploaded images with a prompt and saves the results.
// Uploads are sniffed; declared content types are not trusted.
func (h HandlerSet) EditImages(c *gin.Context) {
	prompt := c.PostForm("prompt")
	if prompt == "" {
		h.fail(c, apperr.InvalidArgument("prompt is required"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["image"]
	if len(files) == 0 {
		h.fail(c, apperr.InvalidArgument("at least one image is required"))
		return
	}

	var sources [][]byte
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			h.fail(c, apperr.InvalidArgument("open upload %s", file.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.fail(c, apperr.InvalidArgument("read upload %s", file.Filename))
			return
		}

		result, err := sniffer.DetectHead(data)
		if err != nil || result.Video {
			h.fail(c, apperr.InvalidArgument("upload %s is not a supported image", file.Filename))
			return
		}
		sources = append(sources, data)
	}

	ctx := c.Request.Context()
	edited, err := h.imageGen.Edit(ctx, prompt, sources, len(sources))
	if err != nil {
		h.fail(c, fmt.Errorf("edit images: %w", err))
		return
	}

	generationID := ids.New()
	var saved []models.Asset
	for _, data := range edited {
		asset, err := h.service.CreateAsset(ctx, gallery.CreateAssetInput{
			MediaType:    models.MediaTypeImage,
			FolderPath:   c.PostForm("folderPath"),
			Data:         data,
			ContentType:  "image/png",
			Prompt:       prompt,
			Model:        h.cfg.Providers.ImageGen.Deployment,
			GenerationID: generationID,
		})
		if err != nil {
			h.log.Warn().Err(err).Msg("edited image could not be stored")
			continue
		}
		saved = append(saved, *asset)
	}

	c.JSON(http.StatusCreated, gin.H{"generationId": generationID, "assets": saved})
}

func (h HandlerSet) EnhancePrompt(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enhanced, err := h.vision.EnhancePrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		h.fail(c, fmt.Errorf("enhance prompt: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": enhanced})
}

// AnalyzeImage runs the vision pass over an existing gallery asset and
// optionally persists the result into its metadata.
func (h HandlerSet) AnalyzeImage(c *gin.Context) {
	var req struct {
		MediaType string `json:"mediaType" binding:"required"`
		Key       string `json:"key" binding:"required"`
		Persist   bool   `json:"persist"`
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
	if mediaType != models.MediaTypeImage {
		h.fail(c, apperr.InvalidArgument("analysis supports images only"))
		return
	}

	ctx := c.Request.Context()
	data, contentType, err := h.service.GetContent(ctx, mediaType, req.Key)
	if err != nil {
		h.fail(c, err)
		return
	}

	analysis, err := h.vision.AnalyzeImage(ctx, data, contentType)
	if err != nil {
		h.fail(c, fmt.Errorf("analyze image: %w", err))
		return
	}

	if req.Persist {
		_, err := h.service.UpdateMetadata(ctx, mediaType, req.Key, nil, models.AssetUpdate{
			Summary:     &analysis.Summary,
			Description: &analysis.Description,
			Tags:        &analysis.Tags,
		})
		if err != nil {
			h.log.Warn().Err(err).Str("key", req.Key).Msg("analysis persist failed")
		}
	}
	c.JSON(http.StatusOK, analysis)
}
