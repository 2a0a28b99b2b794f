package models

import (
	"strings"
	"time"
)

// Priority is the urgency tier of a task
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Priorities lists the valid priorities, highest first
var Priorities = []Priority{PriorityP1, PriorityP2, PriorityP3}

func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Status is the progress state of a task
type Status string

const (
	StatusNotDone Status = "Not Done"
	StatusWIP     Status = "Discussed/WIP"
	StatusDone    Status = "Done"
)

// Defaults applied to new tasks that do not specify them
const (
	DefaultStatus   = StatusNotDone
	DefaultPriority = PriorityP2
)

// Statuses lists the valid statuses in workflow order
var Statuses = []Status{StatusNotDone, StatusWIP, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusNotDone, StatusWIP, StatusDone:
		return true
	}
	return false
}

// Task is one row of the roadmap. Date and Days hold the raw cell text so
// that blank or malformed cells survive a round trip through the store.
type Task struct {
	SlNo          string   `json:"slNo"`
	Date          string   `json:"date"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Comments      string   `json:"comments"`
	Owner         string   `json:"owner"`
	Collaborators string   `json:"collaborators"`
	Priority      Priority `json:"priority"`
	Category      string   `json:"category"`
	Status        Status   `json:"status"`
	Days          string   `json:"noOfDays"`
	RowHandle     int64    `json:"rowHandle"`
}

// TaskView is a task as returned to callers, decorated with derived fields
type TaskView struct {
	Task
	IsOverdue bool `json:"isOverdue"`
}

// TaskPatch carries the fields present in a create or update request.
// A nil field was absent from the request.
type TaskPatch struct {
	SlNo          *string   `json:"slNo,omitempty"`
	Date          *string   `json:"date,omitempty"`
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Comments      *string   `json:"comments,omitempty"`
	Owner         *string   `json:"owner,omitempty"`
	Collaborators *string   `json:"collaborators,omitempty"`
	Priority      *Priority `json:"priority,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Days          *string   `json:"noOfDays,omitempty"`
}

// ApplyTo overwrites the fields of t that are present in the patch.
// Owner, priority and status are left to the caller so they can be routed
// through validation.
func (p TaskPatch) ApplyTo(t Task) Task {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&t.SlNo, p.SlNo)
	set(&t.Date, p.Date)
	set(&t.Title, p.Title)
	set(&t.Description, p.Description)
	set(&t.Comments, p.Comments)
	set(&t.Collaborators, p.Collaborators)
	set(&t.Category, p.Category)
	set(&t.Days, p.Days)
	return t
}

// Role is the authorization level of a user
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an authenticated identity
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Is reports whether name refers to this user, ignoring case and padding
func (u *User) Is(name string) bool {
	return u != nil && strings.EqualFold(strings.TrimSpace(u.Username), strings.TrimSpace(name))
}

// ThreadStatus is derived from thread activity, never assigned
type ThreadStatus string

const (
	ThreadOpen   ThreadStatus = "open"
	ThreadClosed ThreadStatus = "closed"
)

// Thread is a multi-party conversation
type Thread struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	CreatedBy      string       `json:"createdBy"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastActivityAt time.Time    `json:"lastActivityAt"`
	Status         ThreadStatus `json:"status"`
}

// Message is a post in a thread. ParentID links a reply to a top-level message.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	ParentID  *string   `json:"parentId,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ThreadDetail is a thread together with its ordered messages
type ThreadDetail struct {
	Thread   Thread    `json:"thread"`
	Messages []Message `json:"messages"`
}

// Chat is a 1:1 conversation keyed by its participant pair
type Chat struct {
	ID             string    `json:"id"`
	Participant1   string    `json:"participant1"`
	Participant2   string    `json:"participant2"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// HasParticipant reports whether username takes part in the chat
func (c Chat) HasParticipant(username string) bool {
	return strings.EqualFold(c.Participant1, username) || strings.EqualFold(c.Participant2, username)
}

// Other returns the participant that is not username
func (c Chat) Other(username string) string {
	if strings.EqualFold(c.Participant1, username) {
		return c.Participant2
	}
	return c.Participant1
}

// ChatMessage is a post in a chat
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
