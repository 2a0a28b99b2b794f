package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/auth"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

func (s *Server) login(c echo.Context) error {
	if !s.loginLimiter.Allow() {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts")
	}

	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := s.auth.Validate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return apperr.Internal("Failed to issue token", err)
	}

	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: *user})
}

// Tokens are stateless; logout only records the event.
func (s *Server) logout(c echo.Context) error {
	lg := logging.Component("auth")
	lg.Info().Str("username", auth.UserFrom(c).Username).Msg("Logout")
	return c.JSON(http.StatusOK, success())
}

func (s *Server) refreshDirectory(c echo.Context) error {
	s.auth.Refresh()
	lg := logging.Component("auth")
	lg.Info().Str("username", auth.UserFrom(c).Username).Msg("User directory cache dropped")
	return c.JSON(http.StatusOK, success())
}

func success() map[string]bool {
	return map[string]bool{"success": true}
}
