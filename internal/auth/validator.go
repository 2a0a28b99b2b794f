package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
)

// Validator checks credentials against the cached user directory
type Validator struct {
	directory *Cache[[]DirectoryEntry]
}

// NewValidator creates a validator that refreshes the directory from load
// every ttl
func NewValidator(load func(ctx context.Context) ([]DirectoryEntry, error), ttl time.Duration, now func() time.Time) *Validator {
	return &Validator{directory: NewCache(load, ttl, now)}
}

// Validate returns the user matching username and password
func (v *Validator) Validate(ctx context.Context, username, password string) (*models.User, error) {
	lg := logging.Component("auth")

	entries, stale, err := v.directory.Get(ctx)
	if err != nil {
		lg.Error().Err(err).Msg("Failed to load user directory")
		return nil, apperr.Internal("Authentication service error", err)
	}
	if stale != nil {
		lg.Warn().Err(stale).Msg("Using stale user directory")
	}

	name := strings.ToLower(strings.TrimSpace(username))
	for _, e := range entries {
		if strings.ToLower(strings.TrimSpace(e.Username)) != name {
			continue
		}
		if !passwordMatches(e.Password, password) {
			break
		}

		role := models.Role(strings.ToLower(strings.TrimSpace(e.Role)))
		if role != models.RoleAdmin {
			role = models.RoleUser
		}
		lg.Info().Str("username", e.Username).Msg("Login successful")
		return &models.User{Username: e.Username, Role: role, Email: e.Email}, nil
	}

	lg.Warn().Str("username", username).Msg("Login failed - invalid credentials")
	return nil, apperr.Unauthenticated("Invalid credentials")
}

func passwordMatches(stored, given string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword returns a bcrypt hash suitable for the directory file
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Refresh drops the cached directory so the next login reloads it
func (v *Validator) Refresh() {
	v.directory.Invalidate()
}
