package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Index       string `json:"index"`
	Cache       string `json:"cache"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeStatus := "ok"
	if err := h.store.EnsureContainers(ctx); err != nil {
		storeStatus = "error"
		h.log.Error().Err(err).Msg("object store probe failed")
	}

	indexStatus := "disabled"
	if h.index != nil {
		indexStatus = "ok"
		if err := h.index.Health(ctx); err != nil {
			indexStatus = "error"
			h.log.Error().Err(err).Msg("metadata index probe failed")
		}
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "ok"
		if err := h.cache.Ping(ctx).Err(); err != nil {
			cacheStatus = "error"
			h.log.Error().Err(err).Msg("redis ping failed")
		}
	}

	status := "ok"
	if storeStatus == "error" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:      status,
		Store:       storeStatus,
		Index:       indexStatus,
		Cache:       cacheStatus,
		Environment: h.cfg.Environment,
	})
}
