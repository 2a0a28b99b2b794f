package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/conversation"
	"github.com/tgienger/tracker/internal/models"
	"github.com/tgienger/tracker/internal/tasks"
)

var (
	_ tasks.Store             = (*DB)(nil)
	_ conversation.Repository = (*DB)(nil)
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestTasks_RowStore(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	first, err := database.Append(ctx, models.Task{Title: "one", Owner: "alice", Priority: models.PriorityP2, Status: models.StatusNotDone})
	require.NoError(t, err)
	second, err := database.Append(ctx, models.Task{Title: "two", Owner: "bob", Priority: models.PriorityP1, Status: models.StatusWIP, Days: "3"})
	require.NoError(t, err)
	assert.Less(t, first.RowHandle, second.RowHandle)

	all, err := database.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "one", all[0].Title)
	assert.Equal(t, "two", all[1].Title)
	assert.Equal(t, models.PriorityP1, all[1].Priority)
	assert.Equal(t, "3", all[1].Days)

	changed := all[0]
	changed.Title = "one, renamed"
	changed.Status = models.StatusDone
	require.NoError(t, database.UpdateAt(ctx, first.RowHandle, changed))

	all, err = database.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one, renamed", all[0].Title)
	assert.Equal(t, models.StatusDone, all[0].Status)
	assert.Equal(t, first.RowHandle, all[0].RowHandle)

	err = database.UpdateAt(ctx, 999, changed)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestTasks_ClosedDatabaseIsUnavailable(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, database.Close())

	_, err := database.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeStoreUnavailable))
	assert.Equal(t, "Unable to fetch tasks", apperr.MessageOf(err))
}

func TestThreadsAndMessages(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	th := models.Thread{ID: "t1", Title: "Planning", CreatedBy: "alice", CreatedAt: now, LastActivityAt: now, Status: models.ThreadOpen}
	require.NoError(t, database.InsertThread(ctx, th))

	got, err := database.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Title)
	assert.True(t, got.LastActivityAt.Equal(now))

	_, err = database.GetThread(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	parent := "m1"
	require.NoError(t, database.AppendMessage(ctx, models.Message{ID: "m1", ThreadID: "t1", Author: "alice", Body: "hi", CreatedAt: now}, th))
	require.NoError(t, database.AppendMessage(ctx, models.Message{ID: "m2", ThreadID: "t1", ParentID: &parent, Author: "bob", Body: "hey", CreatedAt: now}, th))

	msgs, err := database.ThreadMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID, "equal timestamps keep insertion order")
	assert.Nil(t, msgs[0].ParentID)
	require.NotNil(t, msgs[1].ParentID)
	assert.Equal(t, "m1", *msgs[1].ParentID)

	later := now.Add(time.Hour)
	got.LastActivityAt = later
	got.Status = models.ThreadClosed
	require.NoError(t, database.ReplaceThread(ctx, got))

	threads, err := database.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.True(t, threads[0].LastActivityAt.Equal(later))
	assert.Equal(t, models.ThreadClosed, threads[0].Status)
}

func TestAppend_RollsBackWhenActivityUpdateFails(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	th := models.Thread{ID: "t1", Title: "Planning", CreatedBy: "alice", CreatedAt: now, LastActivityAt: now, Status: models.ThreadOpen}
	require.NoError(t, database.InsertThread(ctx, th))

	ghost := th
	ghost.ID = "gone"
	ghost.LastActivityAt = now.Add(time.Hour)
	err := database.AppendMessage(ctx, models.Message{ID: "m1", ThreadID: "t1", Author: "bob", Body: "hi", CreatedAt: now}, ghost)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	msgs, err := database.ThreadMessages(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, msgs, "message insert is rolled back with the failed update")

	chat := models.Chat{ID: "alice:bob", Participant1: "alice", Participant2: "bob", CreatedAt: now, LastActivityAt: now}
	require.NoError(t, database.InsertChat(ctx, chat))
	other := chat
	other.ID = "alice:carol"
	err = database.AppendChatMessage(ctx, models.ChatMessage{ID: "c1", ChatID: "alice:bob", Author: "alice", Body: "ping", CreatedAt: now}, other)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	chatMsgs, err := database.ChatMessages(ctx, "alice:bob")
	require.NoError(t, err)
	assert.Empty(t, chatMsgs)
}

func TestConversationServiceOnSQLite(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	svc := conversation.NewService(database, func() time.Time { return now })

	a, err := svc.GetOrCreateChat(ctx, "Alice", "Bob")
	require.NoError(t, err)
	b, err := svc.GetOrCreateChat(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	_, _, err = svc.AddChatMessage(ctx, a.ID, "alice", "ping")
	require.NoError(t, err)
	msgs, err := svc.ChatMessages(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ping", msgs[0].Body)

	th, err := svc.CreateThread(ctx, "Roadmap", "alice")
	require.NoError(t, err)
	_, _, err = svc.AddMessage(ctx, th.ID, "bob", "first", nil)
	require.NoError(t, err)

	detail, err := svc.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 1)
}

func TestSettings(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	v, err := database.GetSetting(ctx, "last_view")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, database.SetSetting(ctx, "last_view", "threads"))
	require.NoError(t, database.SetSetting(ctx, "last_view", "tasks"))
	v, err = database.GetSetting(ctx, "last_view")
	require.NoError(t, err)
	assert.Equal(t, "tasks", v)
}
