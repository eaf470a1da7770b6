package handlers

import (
	"net/http"

	"temperaturebox/internal/logger"
	"temperaturebox/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services    *service.Service
	log         *logger.Logger
	requireAuth bool
	metrics     http.Handler
}

// Option customizes a Handler.
type Option func(*Handler)

// WithAuth guards /api/v1 with operator bearer tokens.
func WithAuth(enabled bool) Option {
	return func(h *Handler) { h.requireAuth = enabled }
}

// WithMetrics replaces the /metrics handler (the default Prometheus registry otherwise).
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = promhttp.Handler()
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(h.metrics))

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// live StatusChanged stream, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	if h.requireAuth {
		api.Use(h.operatorMiddleware)
	}
	{
		h.registerBoxRoutes(api)
		h.registerLogRoutes(api)
		api.GET("/ports", h.listPorts)
		api.GET("/me", h.whoAmI)
	}
}

func (h *Handler) registerBoxRoutes(api *gin.RouterGroup) {
	boxes := api.Group("/boxes")
	{
		boxes.GET("", h.listBoxes)
		boxes.GET("/:id", h.getBox)
		boxes.POST("/:id/start", h.startBox)
		boxes.POST("/:id/stop", h.stopBox)
		boxes.POST("/:id/check", h.checkBox)
		// Body example: {"temperature":120,"time":1.5}
		boxes.POST("/:id/steps", h.addStep)
		boxes.DELETE("/:id/steps", h.clearProtocol)
		boxes.PUT("/:id/connection", h.setConnection)
		boxes.PUT("/:id/port", h.setPort)
		boxes.PUT("/:id/address", h.setAddress)
		boxes.GET("/:id/samples", h.getSamples)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
	}
}
