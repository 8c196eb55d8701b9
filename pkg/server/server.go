package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/logger"
)

// Printer runs one print job. *workflow.Service implements it.
type Printer interface {
	Print(ctx context.Context, image string) (*core.RunResult, error)
}

type Server struct {
	echo      *echo.Echo
	addr      string
	printer   Printer
	startTime time.Time
}

func New(addr string, printer Printer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger())

	srv := &Server{
		echo:      e,
		addr:      addr,
		printer:   printer,
		startTime: time.Now(),
	}
	srv.registerRoutes()

	return srv
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

func (s *Server) Start() error {
	logger.Info("Starting print server on %s", s.addr)
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger logs one line per request through the package logger.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	})
}
