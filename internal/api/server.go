// Package api exposes the HTTP surface for stocks, watchlists, alerts
// and notifications. Authentication happens upstream; the gateway
// forwards the caller's identity in the X-User-ID header.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockwatch/internal/common/logger"
)

const userIDHeader = "X-User-ID"

// Handler registers a group of routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

type ServerConfig struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	echo   *echo.Echo
	config ServerConfig
	logger logger.Logger
}

func NewServer(cfg ServerConfig, log logger.Logger, handlers ...Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			userIDHeader,
		},
	}))

	for _, h := range handlers {
		h.RegisterRoutes(e)
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{echo: e, config: cfg, logger: log}
}

func (s *Server) Start() error {
	addr := s.config.ListenAddress
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout

	go func() {
		s.logger.Info("http server listening", map[string]interface{}{"addr": addr})
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("http server stopped", nil)
	return nil
}

// Echo returns the underlying Echo instance, used by handler tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// callerID extracts the authenticated user from the gateway header.
func callerID(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(userIDHeader)
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing "+userIDHeader+" header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid "+userIDHeader+" header")
	}
	return id, nil
}
