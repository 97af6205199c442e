// Package httpapi provides the HTTP API for distilld.
package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/chat"
	"github.com/fyrsmithlabs/distilld/internal/distill"
	"github.com/fyrsmithlabs/distilld/internal/session"
)

// Server provides the distilld HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	registry *session.Registry
	pipeline *distill.Pipeline
	answers  *chat.Engine
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the HTTP server over the session registry, the
// distillation pipeline and the answer engine.
func NewServer(registry *session.Registry, pipeline *distill.Pipeline, answers *chat.Engine, logger *zap.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if answers == nil {
		return nil, fmt.Errorf("answer engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(newMetrics().middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		registry: registry,
		pipeline: pipeline,
		answers:  answers,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", metricsHandler())

	api := s.echo.Group("/api")
	api.POST("/ingest", s.handleIngestPaste)
	api.POST("/ingest/upload", s.handleIngestUpload)
	api.GET("/samples", s.handleListSamples)
	api.GET("/samples/:name", s.handleGetSample)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.GET("/sessions/:id/messages", s.handleGetMessages)
	api.GET("/sessions/:id/decisions", s.handleGetDecisions)
	api.GET("/sessions/:id/action-items", s.handleGetActionItems)
	api.POST("/sessions/:id/chat", s.handleChat)
	api.POST("/process/:id", s.handleProcess)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
