package main

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

//go:embed web/index.html
var indexHTML []byte

// Answerer turns a query into a single answer sentence
type Answerer interface {
	Resolve(query string) string
}

// Server wires the help bot, admin and maps handlers into one echo instance
type Server struct {
	echo    *echo.Echo
	answers Answerer
	topics  *TopicStore
	maps    *MapService
	cfg     *Config
	logger  *zap.Logger
}

func NewServer(cfg *Config, topics *TopicStore, maps *MapService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		echo:    echo.New(),
		answers: topics,
		topics:  topics,
		maps:    maps,
		cfg:     cfg,
		logger:  logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	// Middleware
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.App.CorsAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	if cfg.App.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(cfg.App.BodyLimit))
	}

	// Routes
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/api/helpbot", s.handleHelpbot)

	// Admin endpoints for the topic table
	s.echo.GET("/admin/topics-info", s.handleTopicsInfo)
	s.echo.POST("/admin/reload-topics", s.handleReloadTopics)

	mapsGroup := s.echo.Group("/api/maps")
	mapsGroup.GET("/geocode", s.handleGeocode)
	mapsGroup.GET("/nearby", s.handleNearby)
	mapsGroup.GET("/script-url", s.handleScriptURL)
	mapsGroup.GET("/view", s.handleMapView)

	return s
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
