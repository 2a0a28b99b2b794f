package conversation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
)

// CloseAfter is how long a thread may stay inactive before it closes
const CloseAfter = 30 * 24 * time.Hour

// Repository persists threads, messages and chats. Get methods return
// apperr.NotFound for unknown ids. Message lists come back in insertion order.
type Repository interface {
	ListThreads(ctx context.Context) ([]models.Thread, error)
	GetThread(ctx context.Context, id string) (models.Thread, error)
	InsertThread(ctx context.Context, t models.Thread) error
	ReplaceThread(ctx context.Context, t models.Thread) error
	ThreadMessages(ctx context.Context, threadID string) ([]models.Message, error)
	// AppendMessage stores m and t's new activity together, or neither
	AppendMessage(ctx context.Context, m models.Message, t models.Thread) error

	GetChat(ctx context.Context, id string) (models.Chat, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
	InsertChat(ctx context.Context, c models.Chat) error
	ChatMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error)
	AppendChatMessage(ctx context.Context, m models.ChatMessage, c models.Chat) error
}

// Service manages threads and 1:1 chats
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a conversation service. A nil clock uses time.Now.
func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// DeriveStatus returns the status of a thread last active at lastActivity
func DeriveStatus(lastActivity, now time.Time) models.ThreadStatus {
	if now.Sub(lastActivity) >= CloseAfter {
		return models.ThreadClosed
	}
	return models.ThreadOpen
}

func fresh(t models.Thread, now time.Time) models.Thread {
	t.Status = DeriveStatus(t.LastActivityAt, now)
	return t
}

// ListThreads returns all threads, most recently active first, with their
// status derived at the current time. Changed statuses are written back as a
// cache; a failed write-back does not affect the result.
func (s *Service) ListThreads(ctx context.Context) ([]models.Thread, error) {
	threads, err := s.repo.ListThreads(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]models.Thread, len(threads))
	for i, t := range threads {
		out[i] = fresh(t, now)
		if out[i].Status != t.Status {
			if err := s.repo.ReplaceThread(ctx, out[i]); err != nil {
				lg := logging.Component("conversation")
				lg.Warn().Err(err).Str("thread", t.ID).Msg("Failed to write back thread status")
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// CreateThread opens a new thread
func (s *Service) CreateThread(ctx context.Context, title, author string) (models.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Thread{}, apperr.InvalidArgument("Title is required")
	}
	if strings.TrimSpace(author) == "" {
		return models.Thread{}, apperr.InvalidArgument("Author is required")
	}

	now := s.now().UTC()
	t := models.Thread{
		ID:             uuid.NewString(),
		Title:          title,
		CreatedBy:      author,
		CreatedAt:      now,
		LastActivityAt: now,
		Status:         models.ThreadOpen,
	}
	if err := s.repo.InsertThread(ctx, t); err != nil {
		return models.Thread{}, err
	}
	return t, nil
}

// GetThread returns a thread and its messages in creation order
func (s *Service) GetThread(ctx context.Context, id string) (models.ThreadDetail, error) {
	t, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return models.ThreadDetail{}, err
	}
	msgs, err := s.repo.ThreadMessages(ctx, id)
	if err != nil {
		return models.ThreadDetail{}, err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return models.ThreadDetail{Thread: fresh(t, s.now()), Messages: msgs}, nil
}

// AddMessage posts to a thread. The thread's status is derived again here,
// so a thread that aged out since it was last read rejects the post.
// A reply must point at a top-level message of the same thread.
func (s *Service) AddMessage(ctx context.Context, threadID, author, body string, parentID *string) (models.Thread, models.Message, error) {
	t, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return models.Thread{}, models.Message{}, err
	}

	if strings.TrimSpace(body) == "" {
		return models.Thread{}, models.Message{}, apperr.InvalidArgument("Message body is required")
	}
	if strings.TrimSpace(author) == "" {
		return models.Thread{}, models.Message{}, apperr.InvalidArgument("Author is required")
	}

	now := s.now().UTC()
	if DeriveStatus(t.LastActivityAt, now) == models.ThreadClosed {
		return models.Thread{}, models.Message{}, apperr.ThreadClosed("This thread is closed after inactivity")
	}

	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		if err := s.checkParent(ctx, threadID, *parentID); err != nil {
			return models.Thread{}, models.Message{}, err
		}
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		ParentID:  parentID,
		Author:    author,
		Body:      body,
		CreatedAt: now,
	}
	if now.After(t.LastActivityAt) {
		t.LastActivityAt = now
	}
	t.Status = models.ThreadOpen
	if err := s.repo.AppendMessage(ctx, msg, t); err != nil {
		return models.Thread{}, models.Message{}, err
	}
	return t, msg, nil
}

func (s *Service) checkParent(ctx context.Context, threadID, parentID string) error {
	msgs, err := s.repo.ThreadMessages(ctx, threadID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.ID != parentID {
			continue
		}
		if m.ParentID != nil {
			return apperr.InvalidArgument("Replies cannot be nested")
		}
		return nil
	}
	return apperr.InvalidArgument("Parent message not found in thread")
}

// chatSeparator joins the two names of a chat id. Usernames containing it
// cannot open chats, so no two pairs share an id.
const chatSeparator = ":"

// ChatID returns the id shared by every chat between a and b
func ChatID(a, b string) string {
	pair := []string{strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))}
	sort.Strings(pair)
	return pair[0] + chatSeparator + pair[1]
}

// GetOrCreateChat returns the chat between user1 and user2, creating it on
// first use. Argument order and case do not matter.
func (s *Service) GetOrCreateChat(ctx context.Context, user1, user2 string) (models.Chat, error) {
	user1, user2 = strings.TrimSpace(user1), strings.TrimSpace(user2)
	if user1 == "" || user2 == "" {
		return models.Chat{}, apperr.InvalidArgument("Both participants are required")
	}
	if strings.EqualFold(user1, user2) {
		return models.Chat{}, apperr.InvalidArgument("A chat needs two different participants")
	}
	if strings.Contains(user1, chatSeparator) || strings.Contains(user2, chatSeparator) {
		return models.Chat{}, apperr.InvalidArgument("Usernames in a chat cannot contain " + chatSeparator)
	}

	id := ChatID(user1, user2)
	c, err := s.repo.GetChat(ctx, id)
	if err == nil {
		return c, nil
	}
	if !apperr.Is(err, apperr.CodeNotFound) {
		return models.Chat{}, err
	}

	now := s.now().UTC()
	c = models.Chat{
		ID:             id,
		Participant1:   user1,
		Participant2:   user2,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.repo.InsertChat(ctx, c); err != nil {
		return models.Chat{}, err
	}
	return c, nil
}

// GetChat returns a chat by id
func (s *Service) GetChat(ctx context.Context, id string) (models.Chat, error) {
	return s.repo.GetChat(ctx, id)
}

// ListChatsForUser returns the user's chats, most recently active first
func (s *Service) ListChatsForUser(ctx context.Context, username string) ([]models.Chat, error) {
	all, err := s.repo.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Chat
	for _, c := range all {
		if c.HasParticipant(username) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// ChatMessages returns a chat's messages in creation order
func (s *Service) ChatMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ChatMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// AddChatMessage posts to a chat. Chats never close.
func (s *Service) AddChatMessage(ctx context.Context, chatID, author, body string) (models.Chat, models.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return models.Chat{}, models.ChatMessage{}, apperr.InvalidArgument("Message body is required")
	}

	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, models.ChatMessage{}, err
	}

	now := s.now().UTC()
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Author:    author,
		Body:      body,
		CreatedAt: now,
	}
	if now.After(c.LastActivityAt) {
		c.LastActivityAt = now
	}
	if err := s.repo.AppendChatMessage(ctx, msg, c); err != nil {
		return models.Chat{}, models.ChatMessage{}, err
	}
	return c, msg, nil
}
