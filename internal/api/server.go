package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tgienger/tracker/internal/auth"
	"github.com/tgienger/tracker/internal/conversation"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
	"github.com/tgienger/tracker/internal/tasks"
)

// Authenticator validates credentials
type Authenticator interface {
	Validate(ctx context.Context, username, password string) (*models.User, error)
	Refresh()
}

// Deps are the collaborators the HTTP surface is built on
type Deps struct {
	Tasks         *tasks.Service
	Conversations *conversation.Service
	Auth          Authenticator
	Tokens        *auth.TokenService
	// LoginRate and LoginBurst bound login attempts across all clients
	LoginRate  float64
	LoginBurst int
}

// Server is the HTTP API
type Server struct {
	echo          *echo.Echo
	port          int
	tasks         *tasks.Service
	conversations *conversation.Service
	auth          Authenticator
	tokens        *auth.TokenService
	loginLimiter  *rate.Limiter
}

// NewServer creates the API server and registers its routes
func NewServer(port int, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	limit := rate.Inf
	if deps.LoginRate > 0 {
		limit = rate.Limit(deps.LoginRate)
	}
	burst := deps.LoginBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		echo:          e,
		port:          port,
		tasks:         deps.Tasks,
		conversations: deps.Conversations,
		auth:          deps.Auth,
		tokens:        deps.Tokens,
		loginLimiter:  rate.NewLimiter(limit, burst),
	}

	e.HTTPErrorHandler = s.handleError
	e.Validator = newRequestValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger())

	s.routes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			lg := logging.Component("api")
			ev := lg.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = lg.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func (s *Server) routes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	s.echo.POST("/auth/login", s.login)

	authed := auth.RequireAuth(s.tokens)
	s.echo.POST("/auth/logout", s.logout, authed)
	s.echo.POST("/auth/directory/refresh", s.refreshDirectory, authed, auth.RequireRole(models.RoleAdmin))

	s.echo.GET("/tasks", s.listTasks, authed)
	s.echo.GET("/tasks/my", s.listMyTasks, authed)
	s.echo.GET("/tasks/p1", s.listP1Tasks, authed)
	s.echo.GET("/tasks/overdue", s.listOverdueTasks, authed)
	s.echo.POST("/tasks", s.createTask, authed)
	s.echo.PUT("/tasks/:rowHandle", s.updateTask, authed)

	s.echo.GET("/threads", s.listThreads, authed)
	s.echo.POST("/threads", s.createThread, authed)
	s.echo.GET("/threads/:id", s.getThread, authed)
	s.echo.POST("/threads/:id/messages", s.addMessage, authed)

	s.echo.GET("/chats", s.listChats, authed)
	s.echo.POST("/chats", s.openChat, authed)
	s.echo.GET("/chats/:id/messages", s.chatMessages, authed)
	s.echo.POST("/chats/:id/messages", s.addChatMessage, authed)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins listening and blocks until the server stops
func (s *Server) Start() error {
	lg := logging.Component("api")
	lg.Info().Int("port", s.port).Msg("API server listening")
	if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
