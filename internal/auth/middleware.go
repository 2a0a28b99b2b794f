package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
)

const userContextKey = "user"

// RequireAuth validates the bearer token and stores the user in the context
func RequireAuth(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return apperr.Unauthenticated("Authentication required")
			}

			user, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				lg := logging.Component("auth")
				lg.Warn().Err(err).Msg("Invalid token")
				return apperr.Unauthenticated("Invalid or expired token")
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// RequireRole rejects users whose role is not one of roles
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFrom(c)
			if user == nil {
				return apperr.Unauthenticated("Authentication required")
			}
			for _, r := range roles {
				if user.Role == r {
					return next(c)
				}
			}
			return apperr.Forbidden("Forbidden")
		}
	}
}

// UserFrom returns the authenticated user stored by RequireAuth
func UserFrom(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
