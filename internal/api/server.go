// Package api exposes the query and geocode surfaces over HTTP with gin.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GodspeedAgent/dpd-dispatch/internal/config"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
)

// Server wraps the gin engine in an http.Server with configured timeouts.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// NewServer builds the server and its routes. Metrics is optional; when
// nil the /metrics route is not registered.
func NewServer(handler *Handler, cfg config.ServerConfig, debug bool, metricsHandler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	SetupRoutes(router, handler, metricsHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler, metricsHandler http.Handler) {
	router.GET("/health", handler.HealthCheck)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		incidents := v1.Group("/incidents")
		incidents.POST("/search", handler.Search)        // POST /api/v1/incidents/search
		incidents.GET("/beats/:beat", handler.GetByBeat) // GET /api/v1/incidents/beats/:beat

		v1.POST("/geocode", handler.Geocode)  // POST /api/v1/geocode
		v1.GET("/datasets", handler.Datasets) // GET /api/v1/datasets
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", logger.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request at debug level.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()))
	}
}
