// Package api exposes the admin HTTP API: instance and rule management,
// sync triggers, watchlist inspection, logs, and the websocket mount.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/relayarr/relayarr/internal/api/middleware"
	"github.com/relayarr/relayarr/internal/api/ratelimit"
	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/auth"
	"github.com/relayarr/relayarr/internal/config"
	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/dispatch"
	"github.com/relayarr/relayarr/internal/logger"
	"github.com/relayarr/relayarr/internal/scheduler"
	"github.com/relayarr/relayarr/internal/status"
	"github.com/relayarr/relayarr/internal/websocket"
)

// Deps carries the services the server exposes. Optional fields may be
// nil; the corresponding routes return 503.
type Deps struct {
	Store      *database.Store
	Auth       *auth.Service
	Radarr     *arr.RadarrManager
	Sonarr     *arr.SonarrManager
	Dispatcher *dispatch.Service
	Status     *status.Service
	Scheduler  *scheduler.Scheduler
	Hub        *websocket.Hub
	Logs       *logger.LogBroadcaster
	LogFile    string
}

// Server handles HTTP requests for the Relayarr admin API.
type Server struct {
	echo    *echo.Echo
	cfg     *config.Config
	logger  zerolog.Logger
	deps    Deps
	limiter *ratelimit.AuthLimiter
	started time.Time
}

// NewServer creates the API server and wires its routes.
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		cfg:     cfg,
		logger:  logger.With().Str("component", "api").Logger(),
		deps:    deps,
		limiter: ratelimit.NewAuthLimiter(),
		started: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())
	s.echo.Use(middleware.BodyLimit("2M"))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(s.limiter.Middleware())
	authGroup.POST("/login", s.login)
	authGroup.POST("/setup", s.setup)
	authGroup.GET("/status", s.authStatus)

	protected := api.Group("")
	protected.Use(s.requireAuth())
	protected.GET("/status", s.getStatus)

	instances := protected.Group("/instances")
	instances.GET("/:service", s.listInstances)
	instances.POST("/:service", s.createInstance)
	instances.GET("/:service/:id", s.getInstance)
	instances.PUT("/:service/:id", s.updateInstance)
	instances.DELETE("/:service/:id", s.deleteInstance)
	instances.POST("/:service/:id/test", s.testInstance)
	instances.GET("/:service/:id/profiles", s.instanceProfiles)
	instances.GET("/:service/:id/rootfolders", s.instanceRootFolders)

	rules := protected.Group("/rules")
	rules.GET("", s.listRules)
	rules.POST("", s.createRule)
	rules.GET("/export", s.exportRules)
	rules.POST("/import", s.importRules)
	rules.GET("/:id", s.getRule)
	rules.PUT("/:id", s.updateRule)
	rules.DELETE("/:id", s.deleteRule)

	watchlist := protected.Group("/watchlist")
	watchlist.GET("/movies", s.listMovieItems)
	watchlist.GET("/shows", s.listShowItems)
	watchlist.POST("/:id/route", s.routeItem)

	sync := protected.Group("/sync")
	sync.POST("/statuses", s.triggerStatusSync)
	sync.POST("/instances", s.triggerInstanceSync)

	tasks := protected.Group("/scheduler/tasks")
	tasks.GET("", s.listTasks)
	tasks.GET("/:id", s.getTask)
	tasks.POST("/:id/run", s.runTask)

	logs := protected.Group("/logs")
	logs.GET("", s.getRecentLogs)
	logs.GET("/download", s.downloadLogFile)

	if s.deps.Hub != nil {
		s.echo.GET("/ws", s.deps.Hub.HandleWebSocket)
	}
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info().Str("addr", addr).Msg("starting API server")
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errJSON(c echo.Context, code int, err error) error {
	return c.JSON(code, map[string]string{"error": err.Error()})
}

func readBody(c echo.Context) ([]byte, error) {
	defer c.Request().Body.Close()
	return io.ReadAll(c.Request().Body)
}
