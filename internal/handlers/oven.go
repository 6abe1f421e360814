package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CommandRequest carries one text command, exactly as it would be sent over /ws.
type CommandRequest struct {
	// Command text, e.g. REFLOW, profile:lead_free or target:180
	Command string `json:"command" binding:"required" example:"REFLOW"`
}

// @Summary      Get oven state
// @Tags         oven
// @Produce      json
// @Success      200  {object}  reflow_oven.OvenState
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/oven/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Oven.State(c.Request.Context())
	if err != nil {
		h.engineError(c, errGetState, "oven_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Send a command
// @Description  Accepts the websocket command set. Unknown commands are ignored; profile and target commands return an ack.
// @Tags         oven
// @Accept       json
// @Produce      json
// @Param        body  body      CommandRequest  true  "Command"
// @Success      200   {object}  map[string]interface{}  "status, ack"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/oven/command [post]
// @Security     BearerAuth
func (h *Handler) postCommand(c *gin.Context) {
	var req CommandRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	text := strings.TrimSpace(req.Command)
	ack, err := h.services.Oven.Command(c.Request.Context(), text)
	if err != nil {
		h.engineError(c, "failed to execute command", "oven_command_failed", err)
		return
	}
	if h.log != nil {
		h.log.Infow("oven_command", "command", text, "user", c.GetInt(ctxUserID))
	}
	resp := gin.H{"status": statusOK}
	if ack != nil {
		resp["ack"] = ack
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Calibration state
// @Tags         oven
// @Produce      json
// @Success      200  {object}  engine.Calibration
// @Failure      503  {object}  map[string]string
// @Router       /calibration [get]
func (h *Handler) getCalibration(c *gin.Context) {
	out, err := h.services.Oven.Calibration(c.Request.Context())
	if err != nil {
		h.engineError(c, "failed to read calibration", "oven_calibration_failed", err)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(out))
}
