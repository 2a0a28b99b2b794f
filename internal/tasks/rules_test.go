package tasks

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
)

func sampleTask() models.Task {
	return models.Task{
		SlNo:      "7",
		Date:      "2025-03-01",
		Title:     "Write report",
		Owner:     "alice",
		Priority:  models.PriorityP2,
		Status:    models.StatusNotDone,
		Days:      "5",
		RowHandle: 3,
	}
}

func TestChangePriority_InvalidLeavesInputUntouched(t *testing.T) {
	for _, p := range []models.Priority{"", "P0", "P4", "p1", "high"} {
		t.Run(string(p), func(t *testing.T) {
			orig := sampleTask()
			before := orig

			_, err := ChangePriority(orig, p)
			require.Error(t, err)
			assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
			if diff := cmp.Diff(before, orig); diff != "" {
				t.Errorf("input modified (-before +after):\n%s", diff)
			}
		})
	}
}

func TestChangePriority_Valid(t *testing.T) {
	orig := sampleTask()
	got, err := ChangePriority(orig, models.PriorityP1)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityP1, got.Priority)
	assert.Equal(t, models.PriorityP2, orig.Priority)
}

func TestUpdateStatus(t *testing.T) {
	for _, s := range models.Statuses {
		got, err := UpdateStatus(sampleTask(), s)
		require.NoError(t, err)
		assert.Equal(t, s, got.Status)
	}

	_, err := UpdateStatus(sampleTask(), "Blocked")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestAssignOwner(t *testing.T) {
	_, err := AssignOwner(sampleTask(), "")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = AssignOwner(sampleTask(), "   ")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestAssignOwner_LastWriteWins(t *testing.T) {
	orig := sampleTask()

	a, err := AssignOwner(orig, "A")
	require.NoError(t, err)
	twice, err := AssignOwner(a, "B")
	require.NoError(t, err)
	once, err := AssignOwner(orig, "B")
	require.NoError(t, err)

	assert.Equal(t, "B", twice.Owner)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("double assignment differs from single (-once +twice):\n%s", diff)
	}
	assert.Equal(t, "alice", orig.Owner)
}

func TestDueDate(t *testing.T) {
	tests := []struct {
		name string
		date string
		days string
		want time.Time
		ok   bool
	}{
		{"iso", "2025-03-01", "5", time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), true},
		{"zero days", "2025-03-01", "0", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"month rollover", "2025-01-30", "3", time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC), true},
		{"us layout", "3/1/2025", "1", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"padded days", "2025-03-01", " 2 ", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), true},
		{"no date", "", "5", time.Time{}, false},
		{"bad date", "someday", "5", time.Time{}, false},
		{"no days", "2025-03-01", "", time.Time{}, false},
		{"non numeric days", "2025-03-01", "five", time.Time{}, false},
		{"negative days", "2025-03-01", "-1", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := sampleTask()
			task.Date = tt.date
			task.Days = tt.days

			got, ok := DueDate(task)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestIsOverdue(t *testing.T) {
	due := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)

	task := sampleTask()
	assert.False(t, IsOverdue(task, due), "due instant itself is not overdue")
	assert.True(t, IsOverdue(task, due.Add(time.Second)))
	assert.False(t, IsOverdue(task, due.Add(-time.Hour)))

	task.Status = models.StatusDone
	assert.False(t, IsOverdue(task, due.AddDate(1, 0, 0)), "done tasks are never overdue")

	task = sampleTask()
	task.Days = ""
	assert.False(t, IsOverdue(task, due.AddDate(1, 0, 0)), "no due date means not overdue")
}
