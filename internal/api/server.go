package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qubitrhythm/disensor/internal/api/middleware"
	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/logging"
	"github.com/qubitrhythm/disensor/internal/observability"
)

// Server is the dashboard HTTP server.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings

	views   *ViewStore
	hub     *Hub
	hexmap  *HexMapBuilder
	metrics *observability.Metrics

	logger    *slog.Logger
	logCloser func() error
	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHexMap sets the builder serving /api/v1/hexmap. Without it the route answers 503.
func WithHexMap(b *HexMapBuilder) ServerOption {
	return func(s *Server) {
		s.hexmap = b
	}
}

// WithLogger overrides the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var liveGauge prometheus.Gauge
	if s.metrics != nil && s.metrics.HTTP != nil {
		liveGauge = s.metrics.HTTP.LiveClients
	}
	s.hub = NewHub(s.logger, liveGauge)
	s.views = NewViewStore(s.hub)

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// initLogger uses a rotated access log file when webserver.log is enabled,
// the shared structured logger otherwise.
func (s *Server) initLogger() error {
	if s.logger != nil {
		return nil
	}

	logCfg := s.settings.WebServer.Log
	if !logCfg.Enabled || logCfg.Path == "" {
		s.logger = log
		return nil
	}

	logger, closer, err := logging.NewFileLogger(logCfg.Path, "api", logging.ParseLevel(logCfg.Level))
	if err != nil {
		return err
	}
	s.logger = logger
	s.logCloser = closer
	return nil
}

func (s *Server) setupMiddleware() {
	s.echo.Pre(echomw.RemoveTrailingSlash())
	s.echo.Use(echomw.Recover())
	s.echo.Use(middleware.NewSecureHeaders())
	s.echo.Use(middleware.NewCORS(s.config.AllowedOrigins))
	s.echo.Use(middleware.NewRequestLoggerWithSkipper(s.logger, middleware.SkipPaths("/health", "/metrics")))

	if s.metrics != nil && s.metrics.HTTP != nil {
		s.echo.Use(middleware.NewMetrics(s.metrics.HTTP))
	}
	if s.config.RateLimit > 0 {
		s.echo.Use(middleware.NewRateLimiter(s.config.RateLimit, s.config.Burst, middleware.SkipPaths("/health", "/metrics")))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.config.ServeMetrics && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/leaderboard", s.getLeaderboard)
	v1.GET("/nodes/:id/earnings", s.getNodeEarnings)
	v1.GET("/hexmap", s.getHexMap)
	v1.GET("/stats", s.getStats)
	v1.GET("/activity", s.getActivity)
	v1.GET("/live", s.serveLive)
}

// Views returns the store the coordinator renders into.
func (s *Server) Views() *ViewStore {
	return s.views
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", "address", s.config.Listen)
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.closeLog()
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown disconnects live clients and stops the server.
func (s *Server) Shutdown() error {
	s.logger.Info("stopping api server")
	defer s.closeLog()

	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

func (s *Server) closeLog() {
	if s.logCloser == nil {
		return
	}
	if err := s.logCloser(); err != nil {
		log.Warn("failed to close api log", "error", err)
	}
	s.logCloser = nil
}
