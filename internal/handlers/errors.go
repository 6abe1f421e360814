package handlers

import (
	"errors"
	"net/http"

	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errGetState        = "failed to load state"
	errEngineStopped   = "engine not running"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// engineError answers a failed call into the engine runner.
func (h *Handler) engineError(c *gin.Context, userMsg, logKey string, err error) {
	if errors.Is(err, service.ErrRunnerStopped) {
		h.logAndJSONError(c, http.StatusServiceUnavailable, errEngineStopped, logKey, err)
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
