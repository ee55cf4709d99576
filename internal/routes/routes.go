// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"pos-device-service/internal/config"
	"pos-device-service/internal/handler"
	"pos-device-service/internal/middleware"
	"pos-device-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config           *config.Config
	logger           *zap.Logger
	healthHandler    *handler.HealthHandler
	deviceHandler    *handler.DeviceHandler
	saleHandler      *handler.SaleHandler
	discoveryHandler *handler.DiscoveryHandler
	wsHandler        *handler.WebSocketHandler
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health    *handler.HealthHandler
	Device    *handler.DeviceHandler
	Sale      *handler.SaleHandler
	Discovery *handler.DiscoveryHandler
	WebSocket *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, handlers Handlers) *Router {
	return &Router{
		config:           config,
		logger:           logger,
		healthHandler:    handlers.Health,
		deviceHandler:    handlers.Device,
		saleHandler:      handlers.Sale,
		discoveryHandler: handlers.Discovery,
		wsHandler:        handlers.WebSocket,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsDebugEnabled() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	r.healthHandler.RegisterRoutes(&router.RouterGroup)

	apiV1 := router.Group("/api/v1")
	r.deviceHandler.RegisterRoutes(apiV1)
	r.saleHandler.RegisterRoutes(apiV1)
	r.discoveryHandler.RegisterRoutes(apiV1)

	r.addWebSocketRoutes(router)
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine) {
	ws := router.Group("/ws")
	{
		ws.GET("/events", r.wsHandler.HandleEventConnection)
		ws.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, r.wsHandler.GetConnectionStats())
		})
	}
}

// addDocumentationRoutes serves the OpenAPI document and Swagger UI
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
