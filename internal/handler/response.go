package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crmsync/internal/remote"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// RemoteError maps a classified remote failure onto the HTTP boundary.
// Authentication failures surface as 400 so a stored credential can never be
// probed through this API, and rate limits carry a Retry-After header.
func RemoteError(c *gin.Context, err error) {
	info := remote.Classify(err)
	meta := map[string]any{"error_type": string(info.Type)}
	if info.Code != "" {
		meta["code"] = info.Code
	}

	status := info.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if info.Type == remote.ErrorTypeRateLimit {
		c.Header("Retry-After", strconv.Itoa(int(info.RetryAfter.Seconds())))
		meta["retry_after_seconds"] = int(info.RetryAfter.Seconds())
	}
	Error(c, status, info.Message, meta)
}
