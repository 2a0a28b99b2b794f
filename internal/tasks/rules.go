package tasks

import (
	"strconv"
	"strings"
	"time"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
)

// Date layouts accepted in the date cell
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	time.RFC3339,
}

// AssignOwner returns a copy of t owned by owner
func AssignOwner(t models.Task, owner string) (models.Task, error) {
	if strings.TrimSpace(owner) == "" {
		return t, apperr.InvalidArgument("Owner is required")
	}
	t.Owner = owner
	return t, nil
}

// ChangePriority returns a copy of t with priority p
func ChangePriority(t models.Task, p models.Priority) (models.Task, error) {
	if !p.Valid() {
		return t, apperr.InvalidArgument("Invalid priority")
	}
	t.Priority = p
	return t, nil
}

// UpdateStatus returns a copy of t with status s
func UpdateStatus(t models.Task, s models.Status) (models.Task, error) {
	if !s.Valid() {
		return t, apperr.InvalidArgument("Invalid status")
	}
	t.Status = s
	return t, nil
}

// DueDate returns the task's date plus its duration in days, at midnight UTC.
// ok is false when either cell is blank or malformed.
func DueDate(t models.Task) (due time.Time, ok bool) {
	start, ok := parseDate(t.Date)
	if !ok {
		return time.Time{}, false
	}
	days, err := strconv.Atoi(strings.TrimSpace(t.Days))
	if err != nil || days < 0 {
		return time.Time{}, false
	}
	return start.AddDate(0, 0, days), true
}

// IsOverdue reports whether t was due strictly before now and is not done
func IsOverdue(t models.Task, now time.Time) bool {
	due, ok := DueDate(t)
	if !ok {
		return false
	}
	return due.Before(now) && t.Status != models.StatusDone
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			y, m, day := d.Date()
			return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
