package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCache_RefreshesWhenStale(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	calls := 0
	var fail error
	c := NewCache(func(context.Context) (int, error) {
		if fail != nil {
			return 0, fail
		}
		calls++
		return calls, nil
	}, 5*time.Minute, clk.now)
	ctx := context.Background()

	v, _, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clk.t = clk.t.Add(4 * time.Minute)
	v, _, _ = c.Get(ctx)
	assert.Equal(t, 1, v, "fresh value is reused")

	clk.t = clk.t.Add(2 * time.Minute)
	v, _, _ = c.Get(ctx)
	assert.Equal(t, 2, v, "stale value is refetched")

	clk.t = clk.t.Add(10 * time.Minute)
	fail = errors.New("offline")
	v, stale, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Error(t, stale)

	c.Invalidate()
	_, _, err = c.Get(ctx)
	assert.Error(t, err, "no previous value to fall back on")
}

func TestParseDirectory(t *testing.T) {
	arr, err := ParseDirectory([]byte(`[{"username":"Damon","password":"x"}]`))
	require.NoError(t, err)
	require.Len(t, arr, 1)
	assert.Equal(t, "Damon", arr[0].Username)

	obj, err := ParseDirectory([]byte(`{"users":[{"username":"Anup","password":"y","role":"admin"}]}`))
	require.NoError(t, err)
	require.Len(t, obj, 1)
	assert.Equal(t, "admin", obj[0].Role)

	_, err = ParseDirectory([]byte(`not json`))
	assert.Error(t, err)
}

func TestValidator(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":[
		{"username":"Alice","password":"alice123","email":"alice@example.com"},
		{"username":"root","password":"`+hashed+`","role":"Admin"}
	]}`), 0600))

	src := NewDirectorySource(path, time.Second)
	v := NewValidator(src.Load, time.Minute, nil)
	ctx := context.Background()

	user, err := v.Validate(ctx, " alice ", "alice123")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Username)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, "alice@example.com", user.Email)

	user, err = v.Validate(ctx, "ROOT", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	_, err = v.Validate(ctx, "alice", "wrong")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthenticated))

	_, err = v.Validate(ctx, "nobody", "alice123")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthenticated))
}

func TestValidator_DirectoryUnavailable(t *testing.T) {
	v := NewValidator(NewDirectorySource(filepath.Join(t.TempDir(), "missing.json"), time.Second).Load, time.Minute, nil)
	_, err := v.Validate(context.Background(), "alice", "x")
	assert.True(t, apperr.Is(err, apperr.CodeInternal))
}

func TestDirectorySource_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"username":"bob","password":"pw"}]`))
	}))
	defer srv.Close()

	entries, err := NewDirectorySource(srv.URL, time.Second).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Username)
}

func TestTokenService(t *testing.T) {
	clk := &clock{t: time.Now()}
	ts := NewTokenService("secret", time.Hour, clk.now)

	token, expires, err := ts.Issue(&models.User{Username: "alice", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, expires.Equal(clk.t.Add(time.Hour)))

	user, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.RoleAdmin, user.Role)

	_, err = NewTokenService("other", time.Hour, clk.now).Parse(token)
	assert.Error(t, err, "wrong secret")

	clk.t = clk.t.Add(2 * time.Hour)
	_, err = ts.Parse(token)
	assert.Error(t, err, "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Parse(unsigned)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	ts := NewTokenService("secret", time.Hour, nil)
	token, _, err := ts.Issue(&models.User{Username: "alice", Role: models.RoleUser})
	require.NoError(t, err)

	var seen *models.User
	handler := RequireAuth(ts)(func(c echo.Context) error {
		seen = UserFrom(c)
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	require.NoError(t, handler(e.NewContext(req, httptest.NewRecorder())))
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	err = handler(e.NewContext(req, httptest.NewRecorder()))
	assert.True(t, apperr.Is(err, apperr.CodeUnauthenticated))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	err = handler(e.NewContext(req, httptest.NewRecorder()))
	assert.True(t, apperr.Is(err, apperr.CodeUnauthenticated))
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	handler := RequireRole(models.RoleAdmin)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.Set(userContextKey, &models.User{Username: "alice", Role: models.RoleUser})
	assert.True(t, apperr.Is(handler(c), apperr.CodePermissionDenied))

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.Set(userContextKey, &models.User{Username: "root", Role: models.RoleAdmin})
	assert.NoError(t, handler(c))
}
