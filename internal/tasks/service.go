package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
)

// Store is the row store holding task records. Implementations return
// apperr.StoreUnavailable on I/O failure and apperr.NotFound from UpdateAt
// when the handle does not resolve.
type Store interface {
	FetchAll(ctx context.Context) ([]models.Task, error)
	Append(ctx context.Context, t models.Task) (models.Task, error)
	UpdateAt(ctx context.Context, rowHandle int64, t models.Task) error
}

// Notifier is told about every saved task that is P1 and not done
type Notifier interface {
	OnPriorityChange(ctx context.Context, t models.Task, actor *models.User)
}

// Service runs task mutations and reads against a Store
type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// NewService creates a task service. A nil clock uses time.Now.
func NewService(store Store, notifier Notifier, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, notifier: notifier, now: now}
}

// CreateTask stores a new task. Admins may name another owner; everyone
// else always creates tasks for themselves.
func (s *Service) CreateTask(ctx context.Context, body models.TaskPatch, actor *models.User) (models.Task, error) {
	if actor == nil {
		return models.Task{}, apperr.Unauthenticated("Authentication required")
	}

	task := body.ApplyTo(models.Task{})

	owner := actor.Username
	if actor.IsAdmin() && body.Owner != nil && strings.TrimSpace(*body.Owner) != "" {
		owner = *body.Owner
	}
	task, err := AssignOwner(task, owner)
	if err != nil {
		return models.Task{}, err
	}

	status := models.DefaultStatus
	if body.Status != nil && *body.Status != "" {
		status = *body.Status
	}
	if task, err = UpdateStatus(task, status); err != nil {
		return models.Task{}, err
	}

	priority := models.DefaultPriority
	if body.Priority != nil && *body.Priority != "" {
		priority = *body.Priority
	}
	if task, err = ChangePriority(task, priority); err != nil {
		return models.Task{}, err
	}

	created, err := s.store.Append(ctx, task)
	if err != nil {
		return models.Task{}, err
	}

	lg := logging.Component("tasks")
	lg.Info().
		Int64("row", created.RowHandle).
		Str("owner", created.Owner).
		Str("actor", actor.Username).
		Msg("Task created")
	return created, nil
}

// UpdateTask merges body onto the task at rowHandle and persists it.
// Owner, priority and status changes go through the entity rules. Every
// save that leaves the task P1 and not done notifies, not only transitions.
func (s *Service) UpdateTask(ctx context.Context, rowHandle int64, body models.TaskPatch, actor *models.User) (models.Task, error) {
	if actor == nil {
		return models.Task{}, apperr.Unauthenticated("Authentication required")
	}
	if rowHandle <= 0 {
		return models.Task{}, apperr.InvalidArgument("Invalid row index")
	}

	original, err := s.find(ctx, rowHandle)
	if err != nil {
		return models.Task{}, err
	}

	updated := body.ApplyTo(original)
	updated.RowHandle = original.RowHandle

	if body.Owner != nil && *body.Owner != original.Owner {
		if updated, err = AssignOwner(updated, *body.Owner); err != nil {
			return models.Task{}, err
		}
	}
	if body.Priority != nil && *body.Priority != original.Priority {
		if updated, err = ChangePriority(updated, *body.Priority); err != nil {
			return models.Task{}, err
		}
	}
	if body.Status != nil && *body.Status != original.Status {
		if updated, err = UpdateStatus(updated, *body.Status); err != nil {
			return models.Task{}, err
		}
	}

	if err := s.store.UpdateAt(ctx, rowHandle, updated); err != nil {
		return models.Task{}, err
	}

	lg := logging.Component("tasks")
	lg.Info().
		Int64("row", rowHandle).
		Str("actor", actor.Username).
		Str("priority", string(updated.Priority)).
		Str("status", string(updated.Status)).
		Msg("Task updated")

	if updated.Priority == models.PriorityP1 && updated.Status != models.StatusDone && s.notifier != nil {
		s.notifier.OnPriorityChange(ctx, updated, actor)
	}
	return updated, nil
}

func (s *Service) find(ctx context.Context, rowHandle int64) (models.Task, error) {
	all, err := s.store.FetchAll(ctx)
	if err != nil {
		return models.Task{}, err
	}
	for _, t := range all {
		if t.RowHandle == rowHandle {
			return t, nil
		}
	}
	return models.Task{}, apperr.NotFound("Task not found")
}

// List returns every task
func (s *Service) List(ctx context.Context) ([]models.TaskView, error) {
	return s.list(ctx, func(models.Task) bool { return true })
}

// ListByOwner returns the tasks owned by owner, compared case-insensitively
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]models.TaskView, error) {
	owner = strings.TrimSpace(owner)
	return s.list(ctx, func(t models.Task) bool {
		return t.Owner != "" && strings.EqualFold(strings.TrimSpace(t.Owner), owner)
	})
}

// ListP1 returns the P1 tasks
func (s *Service) ListP1(ctx context.Context) ([]models.TaskView, error) {
	return s.list(ctx, func(t models.Task) bool {
		return strings.EqualFold(string(t.Priority), string(models.PriorityP1))
	})
}

// ListOverdue returns the tasks that are overdue now
func (s *Service) ListOverdue(ctx context.Context) ([]models.TaskView, error) {
	now := s.now()
	return s.list(ctx, func(t models.Task) bool { return IsOverdue(t, now) })
}

func (s *Service) list(ctx context.Context, keep func(models.Task) bool) ([]models.TaskView, error) {
	all, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]models.TaskView, 0, len(all))
	for _, t := range all {
		if keep(t) {
			views = append(views, Decorate(t, now))
		}
	}
	return views, nil
}

// Decorate attaches derived fields to t as of now
func Decorate(t models.Task, now time.Time) models.TaskView {
	return models.TaskView{Task: t, IsOverdue: IsOverdue(t, now)}
}
