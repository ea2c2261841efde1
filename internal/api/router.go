package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/seedboard/docs"
	"github.com/99minutos/seedboard/internal/api/handler"
	"github.com/99minutos/seedboard/internal/api/middleware"
	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Service  ports.BoardService
	Sessions *middleware.Sessions
	// Viewers serves the websocket endpoint; nil disables /ws.
	Viewers http.Handler
	Checks  []handler.DependencyCheck
	Log     zerolog.Logger

	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/ws"
		},
	}))
	if d.Sessions != nil {
		e.Use(d.Sessions.Middleware())
	}

	// --- Board ---
	postHandler := handler.NewPostHandler(d.Service, sessionIssuer(d.Sessions))
	boardHandler := handler.NewBoardHandler(d.Service)

	e.POST("/post", postHandler.Submit)
	e.GET("/api/board", boardHandler.Board)
	e.GET("/api/session", boardHandler.Session)
	e.GET("/api/moderation", boardHandler.Moderation,
		middleware.RequireRole(d.Service, domain.RoleModerator))

	if d.Viewers != nil {
		e.GET("/ws", echo.WrapHandler(d.Viewers))
	}

	// --- Health probes ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks...)

	e.GET("/health", healthHandler.Liveness)            // liveness: is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness: are the storage backends up?

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: d.Gatherer,
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// sessionIssuer avoids handing a typed nil to the handler.
func sessionIssuer(s *middleware.Sessions) handler.SessionIssuer {
	if s == nil {
		return nil
	}
	return s
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Warn().Err(v.Error)
			}
			ev.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
