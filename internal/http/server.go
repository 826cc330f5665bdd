// README: API gateway; builds the gin engine and registers routes over the module services.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"busops/internal/http/handlers"
	"busops/internal/http/middleware"
	"busops/internal/infra"
	"busops/internal/modules/notification"
	"busops/internal/modules/trip"
)

// Staff roles allowed to drive trips through the lifecycle.
const (
	RoleOperations = "operations"
	RoleDispatcher = "dispatcher"
	RoleDriver     = "driver"
)

type ServerDeps struct {
	Trip     *trip.Service
	Tokens   handlers.TokenRegistrar
	Hub      *notification.Hub
	Verifier infra.TokenVerifier
	// AllowOrigins restricts CORS; empty allows every origin.
	AllowOrigins []string
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(), middleware.Recovery(), cors.New(s.corsConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))

	tripHandler := handlers.NewTripHandler(s.deps.Trip)
	trips := api.Group("/trips")
	trips.GET("/:id", tripHandler.Get)
	trips.GET("/:id/timeline", tripHandler.Timeline)
	trips.POST("/:id/status", middleware.RequireRoles(RoleOperations, RoleDispatcher, RoleDriver), tripHandler.ChangeStatus)
	trips.POST("/:id/complete", middleware.RequireRoles(RoleOperations, RoleDispatcher, RoleDriver), tripHandler.Complete)
	trips.POST("/:id/cancel", middleware.RequireRoles(RoleOperations, RoleDispatcher), tripHandler.Cancel)

	notifyHandler := handlers.NewNotificationHandler(s.deps.Tokens, s.deps.Hub)
	api.POST("/notifications/tokens", notifyHandler.RegisterToken)
	api.GET("/ws", notifyHandler.Live)

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(s.deps.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.deps.AllowOrigins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.HeaderRequestID)
	cfg.ExposeHeaders = []string{middleware.HeaderRequestID}
	return cfg
}
