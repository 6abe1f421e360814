package handlers

import (
	"net/http"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. metrics may be nil,
// in which case /metrics is not served.
func NewHandler(services *service.Service, metrics http.Handler, log *logger.Logger) *Handler {
	return &Handler{services: services, metrics: metrics, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	router.GET("/calibration", h.getCalibration)
	h.registerDocumentRoutes(router)
	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// telemetry push and command channel
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerDocumentRoutes(r *gin.Engine) {
	r.GET("/profiles", h.getProfiles)
	r.POST("/profiles", h.userIdMiddleware, h.putProfiles)
	r.GET("/config", h.getConfig)
	r.POST("/config", h.userIdMiddleware, h.putConfig)
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerOvenRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerOvenRoutes(api *gin.RouterGroup) {
	oven := api.Group("/oven")
	{
		oven.GET("/state", h.getState)
		// Body example: {"command":"profile:lead_free"}
		oven.POST("/command", h.postCommand)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
