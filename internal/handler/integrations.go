package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crmsync/internal/repository"
	"crmsync/internal/service"
)

type IntegrationHandler struct {
	Store   repository.Store
	Sync    *service.SyncService
	Monitor *service.HealthMonitor
	Logger  *zap.Logger
}

func (h *IntegrationHandler) Register(r *gin.Engine) {
	group := r.Group("/api/integrations")
	group.GET("", h.listIntegrations)
	group.GET("/:id", h.getIntegration)
	group.POST("/:id/sync", h.syncIntegration)
	group.GET("/:id/health", h.checkIntegration)
}

// @Summary List integrations
// @Tags integrations
// @Success 200 {object} apiResponse
// @Router /api/integrations [get]
func (h *IntegrationHandler) listIntegrations(c *gin.Context) {
	items, err := h.Store.ListIntegrations(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list integrations failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

// @Summary Get one integration
// @Tags integrations
// @Param id path string true "integration id"
// @Success 200 {object} apiResponse
// @Router /api/integrations/{id} [get]
func (h *IntegrationHandler) getIntegration(c *gin.Context) {
	item, err := h.Store.GetIntegration(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "integration not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Run one sync for an integration
// @Tags integrations
// @Param id path string true "integration id"
// @Param limit query int false "page size"
// @Param max_pages query int false "max pages"
// @Param resume query bool false "resume from stored cursor"
// @Success 200 {object} apiResponse
// @Router /api/integrations/{id}/sync [post]
func (h *IntegrationHandler) syncIntegration(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "sync service unavailable", nil)
		return
	}
	integration, err := h.Store.GetIntegration(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if integration == nil {
		Error(c, http.StatusNotFound, "integration not found", nil)
		return
	}

	opts := service.SyncOptions{
		PageLimit: intQuery(c, "limit", 0),
		MaxPages:  intQuery(c, "max_pages", 0),
		Resume:    boolQueryDefault(c, "resume", true),
	}
	result, err := h.Sync.SyncIntegration(c.Request.Context(), integration, opts)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("integration sync failed",
				zap.String("integration_id", integration.ID),
				zap.Error(err),
			)
		}
		RemoteError(c, err)
		return
	}
	Ok(c, result, nil)
}

// @Summary Check one integration's health
// @Tags integrations
// @Param id path string true "integration id"
// @Success 200 {object} apiResponse
// @Router /api/integrations/{id}/health [get]
func (h *IntegrationHandler) checkIntegration(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "health monitor unavailable", nil)
		return
	}
	integration, err := h.Store.GetIntegration(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if integration == nil {
		Error(c, http.StatusNotFound, "integration not found", nil)
		return
	}
	Ok(c, h.Monitor.CheckOne(c.Request.Context(), integration), nil)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func boolQueryDefault(c *gin.Context, key string, fallback bool) bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
