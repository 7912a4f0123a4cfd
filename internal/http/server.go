// Package http serves the log collector: an HTTP endpoint that accepts
// entries posted by http transports and re-emits them through a named
// logger of the local engine.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/logweave/internal/config"
	"github.com/fyrsmithlabs/logweave/internal/logging"
	"github.com/fyrsmithlabs/logweave/internal/secrets"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Config holds collector configuration.
type Config struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Token, when set, must be presented as a bearer token on every
	// endpoint except /health.
	Token config.Secret `koanf:"token"`

	// Scrub removes credentials from received messages before they are
	// re-emitted.
	Scrub bool `koanf:"scrub"`

	// BodyLimit caps request bodies, e.g. "1M".
	BodyLimit string `koanf:"body_limit"`
}

// NewDefaultConfig returns the collector defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Host:      "localhost",
		Port:      9090,
		BodyLimit: "1M",
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the listen address and body limit.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BodyLimit != "" {
		if _, err := bytes.Parse(c.BodyLimit); err != nil {
			return fmt.Errorf("invalid body_limit %q: %w", c.BodyLimit, err)
		}
	}
	return nil
}

// Server receives log entries over HTTP.
type Server struct {
	echo     *echo.Echo
	engine   *logging.Engine
	// scrubber is nil unless received messages are scrubbed; rules always
	// backs the scrub endpoint.
	scrubber *secrets.Scrubber
	rules    *secrets.Scrubber
	logger   *zap.Logger
	config   *Config
	metrics  *CollectorMetrics
	scrape   *scrapeMetrics
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMeter records collector metrics on m instead of the global meter.
func WithMeter(m metric.Meter) ServerOption {
	return func(s *Server) { s.metrics = newCollectorMetrics(m, s.logger) }
}

// NewServer creates a collector that emits through engine.
func NewServer(engine *logging.Engine, logger *zap.Logger, cfg *Config, opts ...ServerOption) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("collector config: %w", err)
	}

	rules, err := secrets.New(secrets.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("secret scrubber: %w", err)
	}
	scrubber := rules
	if !cfg.Scrub {
		scrubber = nil
	}

	s := &Server{
		engine:   engine,
		scrubber: scrubber,
		rules:    rules,
		logger:   logger,
		config:   cfg,
		scrape:   newScrapeMetrics(engine),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = NewCollectorMetrics(logger)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	if cfg.Token.IsSet() {
		e.Use(bearerAuth(cfg.Token))
	}

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", s.scrape.handler())

	v1 := s.echo.Group("/api/v1")
	v1.POST("/logs", s.handleIngest)
	v1.POST("/logs/:logger", s.handleIngest)
	v1.POST("/scrub", s.handleScrub)
}

// bearerAuth rejects requests that do not carry token, except health checks.
func bearerAuth(token config.Secret) echo.MiddlewareFunc {
	want := []byte("Bearer " + token.Value())
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/health" {
				return next(c)
			}
			got := []byte(c.Request().Header.Get(echo.HeaderAuthorization))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				return echo.ErrUnauthorized
			}
			return next(c)
		}
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleIngest re-emits posted records through the logger named in the
// path, or the default logger.
func (s *Server) handleIngest(c echo.Context) error {
	var (
		l   *logging.Logger
		err error
	)
	if name := c.Param("logger"); name != "" {
		l, err = s.engine.Logger(name)
	} else {
		l, err = s.engine.Logger()
	}
	if err != nil {
		if errors.Is(err, logging.ErrLoggerNotConfigured) || errors.Is(err, logging.ErrNoDefaultLogger) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		s.logger.Warn("collector logger unavailable", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "logger unavailable")
	}

	records, err := decodeRecords(c.Request().Body)
	if err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(records) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no log records")
	}

	ctx := c.Request().Context()
	if rctx, err := logging.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID)); err == nil {
		ctx = rctx
	}
	var resp IngestResponse
	for _, r := range records {
		if err := s.emit(ctx, l, r); err != nil {
			resp.Rejected++
			continue
		}
		resp.Accepted++
	}
	s.metrics.recordIngest(ctx, l.Name(), resp)
	s.scrape.recordIngest(l.Name(), resp)

	return c.JSON(http.StatusAccepted, resp)
}

func (s *Server) emit(ctx context.Context, l *logging.Logger, r Record) error {
	level, msg, fields, err := r.convert()
	if err != nil {
		return err
	}
	if s.scrubber.Enabled() {
		msg, _ = s.scrubber.Scrub(msg)
	}
	return l.Log(ctx, level, msg, fields...)
}

func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	out, findings := s.rules.Scrub(req.Content)

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       out,
		FindingsCount: len(findings),
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info("starting log collector", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down log collector")
	return s.echo.Shutdown(ctx)
}
