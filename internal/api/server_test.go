package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/auth"
	"github.com/tgienger/tracker/internal/conversation"
	"github.com/tgienger/tracker/internal/db"
	"github.com/tgienger/tracker/internal/models"
	"github.com/tgienger/tracker/internal/notify"
	"github.com/tgienger/tracker/internal/tasks"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAuth struct {
	users     map[string]models.User
	refreshed int
}

func (f *fakeAuth) Validate(_ context.Context, username, password string) (*models.User, error) {
	u, ok := f.users[strings.ToLower(username)]
	if !ok || password != "pw" {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}
	return &u, nil
}

func (f *fakeAuth) Refresh() { f.refreshed++ }

type sentMail struct{ to, subject string }

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject})
	return nil
}

type harness struct {
	server *Server
	clock  *clock
	auth   *fakeAuth
	mailer *recordingMailer
}

func newHarness(t *testing.T, loginRate float64, loginBurst int) *harness {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clk := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mailer := &recordingMailer{}
	notifier := notify.NewService(mailer, notify.Recipients{Admin: "admin@example.com"}, time.Second)
	fa := &fakeAuth{users: map[string]models.User{
		"alice": {Username: "alice", Role: models.RoleUser, Email: "alice@example.com"},
		"bob":   {Username: "bob", Role: models.RoleUser},
		"carol": {Username: "carol", Role: models.RoleUser},
		"root":  {Username: "root", Role: models.RoleAdmin},
	}}

	srv := NewServer(0, Deps{
		Tasks:         tasks.NewService(database, notifier, clk.now),
		Conversations: conversation.NewService(database, clk.now),
		Auth:          fa,
		Tokens:        auth.NewTokenService("test-secret", time.Hour, nil),
		LoginRate:     loginRate,
		LoginBurst:    loginBurst,
	})
	return &harness{server: srv, clock: clk, auth: fa, mailer: mailer}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(raw)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(t *testing.T, username string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) apperr.Code {
	t.Helper()
	var body map[string]errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"].Code
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t, 0, 0)
	rec := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	h := newHarness(t, 0, 0)

	rec := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.CodeUnauthenticated, errorCode(t, rec))

	rec = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[loginResponse](t, rec)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, models.RoleUser, resp.User.Role)
}

func TestLogin_RateLimited(t *testing.T) {
	h := newHarness(t, 0.001, 1)
	h.login(t, "alice")
	rec := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	h := newHarness(t, 0, 0)
	for _, path := range []string{"/tasks", "/tasks/my", "/threads", "/chats"} {
		rec := h.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, apperr.CodeUnauthenticated, errorCode(t, rec), path)
	}
	rec := h.do(t, http.MethodGet, "/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTasks_CreateListUpdate(t *testing.T) {
	h := newHarness(t, 0, 0)
	alice := h.login(t, "alice")
	bob := h.login(t, "bob")

	rec := h.do(t, http.MethodPost, "/tasks", alice, map[string]string{
		"title": "Ship release", "owner": "bob", "date": "2025-05-01", "noOfDays": "3",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = h.do(t, http.MethodPost, "/tasks", bob, map[string]string{"title": "Review"})
	require.Equal(t, http.StatusCreated, rec.Code)

	all := decode[[]models.TaskView](t, h.do(t, http.MethodGet, "/tasks", alice, nil))
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Owner, "non-admins always own what they create")
	assert.True(t, all[0].IsOverdue)
	assert.Equal(t, models.PriorityP2, all[1].Priority)

	mine := decode[[]models.TaskView](t, h.do(t, http.MethodGet, "/tasks/my", bob, nil))
	require.Len(t, mine, 1)
	assert.Equal(t, "Review", mine[0].Title)

	overdue := decode[[]models.TaskView](t, h.do(t, http.MethodGet, "/tasks/overdue", bob, nil))
	require.Len(t, overdue, 1)
	assert.Equal(t, all[0].RowHandle, overdue[0].RowHandle)

	path := "/tasks/" + itoa(all[0].RowHandle)
	rec = h.do(t, http.MethodPut, path, alice, map[string]string{"priority": "P1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p1 := decode[[]models.TaskView](t, h.do(t, http.MethodGet, "/tasks/p1", alice, nil))
	require.Len(t, p1, 1)
	assert.Equal(t, "Ship release", p1[0].Title)

	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "alice@example.com", h.mailer.sent[0].to)
	assert.Equal(t, "[P1 Task] Ship release", h.mailer.sent[0].subject)

	rec = h.do(t, http.MethodPut, path, alice, map[string]string{"status": "Done"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.mailer.sent, 1, "done tasks do not notify")
	overdue = decode[[]models.TaskView](t, h.do(t, http.MethodGet, "/tasks/overdue", bob, nil))
	assert.Empty(t, overdue)
}

func TestTasks_UpdateErrors(t *testing.T) {
	h := newHarness(t, 0, 0)
	alice := h.login(t, "alice")
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/tasks", alice, map[string]string{"title": "x"}).Code)
	handle := decode[[]models.TaskView](t, h.do(t, http.MethodGet, "/tasks", alice, nil))[0].RowHandle

	rec := h.do(t, http.MethodPut, "/tasks/"+itoa(handle), alice, map[string]string{"priority": "P9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeInvalidArgument, errorCode(t, rec))

	rec = h.do(t, http.MethodPut, "/tasks/abc", alice, map[string]string{"title": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPut, "/tasks/999", alice, map[string]string{"title": "y"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeNotFound, errorCode(t, rec))

	rec = h.do(t, http.MethodPost, "/tasks", alice, map[string]string{"status": "Someday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThreads_Lifecycle(t *testing.T) {
	h := newHarness(t, 0, 0)
	alice := h.login(t, "alice")
	bob := h.login(t, "bob")

	rec := h.do(t, http.MethodPost, "/threads", alice, map[string]string{"title": "Release plan"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	thread := decode[models.Thread](t, rec)
	assert.Equal(t, "alice", thread.CreatedBy)
	assert.Equal(t, models.ThreadOpen, thread.Status)

	rec = h.do(t, http.MethodPost, "/threads/"+thread.ID+"/messages", bob, map[string]string{"body": "Looks good"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	posted := decode[struct {
		Message models.Message `json:"message"`
	}](t, rec)
	assert.Equal(t, "bob", posted.Message.Author)

	rec = h.do(t, http.MethodPost, "/threads/"+thread.ID+"/messages", alice, map[string]any{"body": "Thanks", "parentId": posted.Message.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	detail := decode[models.ThreadDetail](t, h.do(t, http.MethodGet, "/threads/"+thread.ID, alice, nil))
	require.Len(t, detail.Messages, 2)
	require.NotNil(t, detail.Messages[1].ParentID)
	assert.Equal(t, posted.Message.ID, *detail.Messages[1].ParentID)

	rec = h.do(t, http.MethodGet, "/threads/missing", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.clock.advance(31 * 24 * time.Hour)

	threads := decode[[]models.Thread](t, h.do(t, http.MethodGet, "/threads", alice, nil))
	require.Len(t, threads, 1)
	assert.Equal(t, models.ThreadClosed, threads[0].Status)

	rec = h.do(t, http.MethodPost, "/threads/"+thread.ID+"/messages", bob, map[string]string{"body": "Anyone?"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeThreadClosed, errorCode(t, rec))
}

func TestChats_ParticipantsOnly(t *testing.T) {
	h := newHarness(t, 0, 0)
	alice := h.login(t, "alice")
	bob := h.login(t, "bob")
	carol := h.login(t, "carol")

	rec := h.do(t, http.MethodPost, "/chats", alice, map[string]string{"with": "Bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	chat := decode[models.Chat](t, rec)
	assert.Equal(t, "alice:bob", chat.ID)

	again := decode[models.Chat](t, h.do(t, http.MethodPost, "/chats", bob, map[string]string{"with": "alice"}))
	assert.Equal(t, chat.ID, again.ID)

	rec = h.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", bob, map[string]string{"body": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	msgs := decode[[]models.ChatMessage](t, h.do(t, http.MethodGet, "/chats/"+chat.ID+"/messages", alice, nil))
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].Author)

	rec = h.do(t, http.MethodGet, "/chats/"+chat.ID+"/messages", carol, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = h.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", carol, map[string]string{"body": "me too"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Empty(t, decode[[]models.Chat](t, h.do(t, http.MethodGet, "/chats", carol, nil)))
	assert.Len(t, decode[[]models.Chat](t, h.do(t, http.MethodGet, "/chats", alice, nil)), 1)

	rec = h.do(t, http.MethodPost, "/chats", alice, map[string]string{"with": "ALICE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDirectoryRefresh_AdminOnly(t *testing.T) {
	h := newHarness(t, 0, 0)

	rec := h.do(t, http.MethodPost, "/auth/directory/refresh", h.login(t, "alice"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, h.auth.refreshed)

	rec = h.do(t, http.MethodPost, "/auth/directory/refresh", h.login(t, "root"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.auth.refreshed)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, 0, 0)
	rec := h.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeNotFound, errorCode(t, rec))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
