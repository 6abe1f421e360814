package handlers

import (
	"errors"
	"net/http"

	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

const maxDocumentBytes = 1 << 20

// readDocument returns the raw request body, answering 400 itself when it cannot be read.
func (h *Handler) readDocument(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentBytes)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return nil, false
	}
	return body, true
}

// @Summary      Get profiles
// @Description  Returns the stored profiles document verbatim.
// @Tags         profiles
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /profiles [get]
func (h *Handler) getProfiles(c *gin.Context) {
	body, err := h.services.Profiles.Get(c.Request.Context())
	if errors.Is(err, repository.ErrDocumentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no profiles stored"})
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load profiles", "profiles_get_failed", err)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(body))
}

// @Summary      Replace profiles
// @Description  Validates the whole document, stores it and serves it to the engine. Invalid documents are not stored.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /profiles [post]
// @Security     BearerAuth
func (h *Handler) putProfiles(c *gin.Context) {
	body, ok := h.readDocument(c)
	if !ok {
		return
	}
	err := h.services.Profiles.Put(c.Request.Context(), body)
	if errors.Is(err, profile.ErrInvalidDocument) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to save profiles", "profiles_put_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Get engine config
// @Tags         config
// @Produce      json
// @Success      200  {object}  service.EngineConfig
// @Failure      500  {object}  map[string]string
// @Router       /config [get]
func (h *Handler) getConfig(c *gin.Context) {
	body, err := h.services.Config.Get()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to encode config", "config_get_failed", err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// @Summary      Update engine config
// @Description  Fields left out keep their current value. Durations are in seconds. The engine is rebuilt and switched off.
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        body  body      service.EngineConfig  true  "Engine config"
// @Success      200   {object}  service.EngineConfig
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /config [post]
// @Security     BearerAuth
func (h *Handler) putConfig(c *gin.Context) {
	body, ok := h.readDocument(c)
	if !ok {
		return
	}
	_, err := h.services.Config.Put(c.Request.Context(), body)
	if errors.Is(err, service.ErrInvalidConfig) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.engineError(c, "failed to apply config", "config_put_failed", err)
		return
	}
	h.getConfig(c)
}
