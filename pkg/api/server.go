// Package api serves the task operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/config"
	"github.com/matt-steen/task-tracker/pkg/report"
	"github.com/matt-steen/task-tracker/pkg/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
	rateStoreExpiry = 3 * time.Minute
)

// ErrMissingSecret is returned when the server is configured without a token secret.
var ErrMissingSecret = errors.New("server.jwt_secret must be set")

// requestValidator plugs go-playground/validator into echo's Bind + Validate.
type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

// Server is the HTTP API.
type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	tasks    *tasks.Manager
	accounts *auth.Service
	reports  *report.Generator
	tokens   *tokenIssuer
	registry *prometheus.Registry
}

// New builds the server and its routes. Extra collectors, such as the reminder poller's, are exposed
// on /metrics.
func New(
	cfg config.ServerConfig,
	manager *tasks.Manager,
	accounts *auth.Service,
	reports *report.Generator,
	collectors ...prometheus.Collector,
) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validator: validator.New()}
	e.HTTPErrorHandler = errorHandler

	s := &Server{
		echo:     e,
		cfg:      cfg,
		tasks:    manager,
		accounts: accounts,
		reports:  reports,
		tokens:   newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		registry: prometheus.NewRegistry(),
	}

	s.registry.MustRegister(collectors...)

	s.setupMiddleware()
	s.setupMetrics()
	s.setupRoutes()

	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errs := make(chan error, 1)

	go func() {
		log.Info().Str("address", s.cfg.Address).Msg("starting api server")

		if err := s.echo.Start(s.cfg.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}

		close(errs)
	}()

	select {
	case err, ok := <-errs:
		if !ok {
			return nil
		}

		return fmt.Errorf("error serving api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Msg("shutting down api server")

	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			event := log.Info()
			if values.Error != nil {
				event = log.Warn().Err(values.Error)
			}

			event.
				Str("method", values.Method).
				Str("uri", values.URI).
				Int("status", values.Status).
				Dur("latency", values.Latency).
				Str("request_id", values.RequestID).
				Msg("http request")

			return nil
		},
	}))

	if s.cfg.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(s.cfg.RateLimit),
					Burst:     s.cfg.RateBurst,
					ExpiresIn: rateStoreExpiry,
				},
			),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			},
		}))
	}
}

func (s *Server) setupMetrics() {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	s.registry.MustRegister(requestsTotal, requestDuration)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = errorStatus(err)
			}

			requestsTotal.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(c.Request().Method, c.Path()).Observe(time.Since(start).Seconds())

			return err
		}
	})

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

func (s *Server) setupRoutes() {
	s.echo.POST("/login", s.login)
	s.echo.POST("/register", s.register)

	authed := s.echo.Group("", s.authMiddleware)

	authed.GET("/tasks", s.listTasks)
	authed.POST("/tasks", s.addTask)
	authed.GET("/tasks/:ref", s.getTask)
	authed.PATCH("/tasks/:ref", s.updateTask)
	authed.DELETE("/tasks/:ref", s.deleteTask)
	authed.POST("/tasks/:ref/complete", s.completeTask)
	authed.POST("/tasks/:ref/toggle", s.toggleTask)

	authed.GET("/reports/:year/:month", s.getReport)
}

// errorHandler renders every error as {"error": message}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := statusFor(err)

	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": msg})
	}

	if err != nil {
		log.Error().Err(err).Msg("error writing error response")
	}
}

func errorStatus(err error) int {
	code, _ := statusFor(err)

	return code
}

// statusFor maps errors to HTTP status codes and the message shown to the client.
func statusFor(err error) (int, string) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	}

	switch {
	case errors.Is(err, tasks.ErrValidation),
		errors.Is(err, report.ErrInvalidPeriod),
		errors.Is(err, report.ErrUnsafeFilename),
		errors.Is(err, auth.ErrInvalidAccount):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, tasks.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, err.Error()
	}

	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
