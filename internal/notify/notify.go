package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
)

// Mailer delivers a plain-text message
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Recipients is the static address book used when the acting user has no
// address of their own
type Recipients struct {
	// Owners maps an upper-cased owner name to an address
	Owners map[string]string
	// Admin receives notifications nobody else can be resolved for
	Admin string
}

// Service decides when a P1 notification fires and sends it best-effort
type Service struct {
	mailer     Mailer
	recipients Recipients
	timeout    time.Duration
}

// NewService creates a notification service. A zero timeout means no
// deadline beyond the caller's context.
func NewService(mailer Mailer, recipients Recipients, timeout time.Duration) *Service {
	return &Service{mailer: mailer, recipients: recipients, timeout: timeout}
}

// ShouldNotify reports whether a saved task warrants a P1 notification to
// the user who saved it. It looks only at the saved state, so re-saving an
// unchanged P1 task notifies again.
func ShouldNotify(t models.Task, actor *models.User) bool {
	return t.Priority == models.PriorityP1 &&
		actor != nil &&
		t.Owner != "" &&
		strings.EqualFold(t.Owner, actor.Username) &&
		t.Status != models.StatusDone
}

// OnPriorityChange sends a notification when ShouldNotify holds
func (s *Service) OnPriorityChange(ctx context.Context, t models.Task, actor *models.User) {
	if !ShouldNotify(t, actor) {
		lg := logging.Component("notify")
		lg.Info().
			Str("title", t.Title).
			Str("owner", t.Owner).
			Str("priority", string(t.Priority)).
			Msg("Priority change does not meet notification criteria")
		return
	}
	s.Dispatch(ctx, actor, t)
}

// Dispatch sends the P1 notification for t. Failures are logged and never
// returned: delivery must not affect the mutation that triggered it.
func (s *Service) Dispatch(ctx context.Context, user *models.User, t models.Task) {
	lg := logging.Component("notify")

	to, err := s.resolve(user, t)
	if err != nil {
		lg.Warn().Err(err).Str("owner", t.Owner).Msg("Cannot send notification")
		return
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	subject, body := Compose(t)
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		lg.Error().Err(err).Str("to", to).Msg("Failed to send notification")
		return
	}
	lg.Info().Str("to", to).Str("title", t.Title).Msg("Notification sent")
}

// resolve picks the user's own address, then the owner's mapped address,
// then the admin address
func (s *Service) resolve(user *models.User, t models.Task) (string, error) {
	if user != nil && strings.TrimSpace(user.Email) != "" {
		return user.Email, nil
	}
	key := strings.ToUpper(strings.TrimSpace(t.Owner))
	if addr := s.recipients.Owners[key]; key != "" && addr != "" {
		return addr, nil
	}
	if s.recipients.Admin != "" {
		return s.recipients.Admin, nil
	}
	return "", apperr.RecipientUnresolved("no recipient email resolved")
}

// Compose builds the subject and body of a P1 notification
func Compose(t models.Task) (subject, body string) {
	title := t.Title
	if title == "" {
		title = "Task update"
	}
	comments := t.Comments
	if comments == "" {
		comments = "-"
	}

	subject = "[P1 Task] " + title
	body = fmt.Sprintf("You have a P1 task assigned to you.\n\n"+
		"Title: %s\nStatus: %s\nPriority: %s\nCategory: %s\nOwner: %s\n\n"+
		"Comments: %s\n\nThis is an automated notification.",
		t.Title, t.Status, t.Priority, t.Category, t.Owner, comments)
	return subject, body
}
