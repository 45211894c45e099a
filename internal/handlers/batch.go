package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type batchDeleteRequest struct {
	MediaType string   `json:"mediaType" binding:"required"`
	Keys      []string `json:"keys" binding:"required"`
}

// BatchDelete removes many keys. Past the configured threshold the work
// detaches and the response reports background acceptance with no tally.
func (h HandlerSet) BatchDelete(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mediaType, err := validMediaType(req.MediaType)
	if err != nil {
		h.fail(c, err)
		return
	}

	outcome, err := h.runner.BatchDelete(c.Request.Context(), mediaType, req.Keys)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.planner.InvalidateFolders(c.Request.Context(), mediaType)
	if outcome.Background {
		c.JSON(http.StatusAccepted, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type batchMoveRequest struct {
	MediaType  string   `json:"mediaType" binding:"required"`
	Keys       []string `json:"keys" binding:"required"`
	DestFolder string   `json:"destFolder"`
}

func (h HandlerSet) BatchMove(c *gin.Context) {
	var req batchMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mediaType, err := validMediaType(req.MediaType)
	if err != nil {
		h.fail(c, err)
		return
	}

	outcome, err := h.runner.BatchMove(c.Request.Context(), mediaType, req.Keys, req.DestFolder)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.planner.InvalidateFolders(c.Request.Context(), mediaType)
	if outcome.Background {
		c.JSON(http.StatusAccepted, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// SyncIndex triggers a reconciliation sweep. force=true rewrites existing
// index records from the store's view. With background=true the sweep is
// fired and forgotten; the response acknowledges without a report.
func (h HandlerSet) SyncIndex(c *gin.Context) {
	force := c.Query("force") == "true"

	if c.Query("background") == "true" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if _, err := h.runner.ReconcileIndex(ctx, force); err != nil {
				h.log.Error().Err(err).Msg("background index sync failed")
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"background": true})
		return
	}

	report, err := h.runner.ReconcileIndex(c.Request.Context(), force)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
