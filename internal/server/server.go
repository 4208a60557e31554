package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/rs/zerolog"
)

// Aggregator is satisfied by *core.Orchestrator.
type Aggregator interface {
	Aggregate(ctx context.Context, req insight.Request) (insight.Report, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the HTTP surface. Workspaces may be nil when storage is
// disabled; the workspace routes are then not mounted.
type Deps struct {
	Config     config.ServerConfig
	Aggregator Aggregator
	Workspaces WorkspaceStore
	Health     []Pinger
	Metrics    http.Handler
	Logger     zerolog.Logger
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	log := d.Logger.With().Str("component", "http").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		ev := log.Warn()
		if code >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Err(err).Int("status", code).Str("method", req.Method).Str("path", req.URL.Path).Str("remote", c.RealIP()).Msg("request failed")
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	origins := d.Config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", healthz(d.Health))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	api := e.Group("/api")
	if d.Config.RequestTimeout > 0 {
		api.Use(middleware.ContextTimeout(d.Config.RequestTimeout))
	}
	ih := &InsightsHandler{Aggregator: d.Aggregator}
	ih.Register(api)
	if d.Workspaces != nil {
		wh := &WorkspacesHandler{Store: d.Workspaces}
		wh.Register(api.Group("/workspaces"))
	}
	return e
}

func healthz(checks []Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, p := range checks {
			if err := p.Ping(ctx); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "unhealthy: "+err.Error())
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}

// Run serves e on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 20 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
