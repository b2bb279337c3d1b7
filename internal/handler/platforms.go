package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crmsync/internal/registry"
	"crmsync/internal/service"
)

type PlatformHandler struct {
	Registry *registry.Registry
	Monitor  *service.HealthMonitor
}

func (h *PlatformHandler) Register(r *gin.Engine) {
	r.GET("/api/platforms", h.listPlatforms)
	r.GET("/api/health/report", h.healthReport)
}

// @Summary List supported platforms
// @Tags platforms
// @Param type query string false "platform type filter (e.g. crm)"
// @Success 200 {object} apiResponse
// @Router /api/platforms [get]
func (h *PlatformHandler) listPlatforms(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	platformType := strings.TrimSpace(c.Query("type"))
	var platforms []registry.Platform
	if platformType == "" {
		platforms = h.Registry.Platforms()
	} else {
		platforms = h.Registry.PlatformsByType(platformType)
	}
	Ok(c, platforms, map[string]any{"count": len(platforms)})
}

// @Summary Health report across all integrations
// @Tags platforms
// @Param fresh query bool false "probe now instead of returning the last snapshot"
// @Success 200 {object} apiResponse
// @Router /api/health/report [get]
func (h *PlatformHandler) healthReport(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "health monitor unavailable", nil)
		return
	}
	if boolQueryDefault(c, "fresh", false) {
		Ok(c, h.Monitor.CheckAll(c.Request.Context()), nil)
		return
	}
	Ok(c, h.Monitor.Snapshot(), nil)
}
