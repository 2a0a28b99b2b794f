package db

import (
	"context"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
)

const taskColumns = `row_handle, sl_no, date, title, description, comments, owner,
	collaborators, priority, category, status, no_of_days`

// FetchAll returns every task in insertion order
func (db *DB) FetchAll(ctx context.Context) ([]models.Task, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY row_handle ASC`)
	if err != nil {
		return nil, unavailable("Unable to fetch tasks", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.RowHandle, &t.SlNo, &t.Date, &t.Title, &t.Description, &t.Comments,
			&t.Owner, &t.Collaborators, &t.Priority, &t.Category, &t.Status, &t.Days); err != nil {
			return nil, unavailable("Unable to fetch tasks", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("Unable to fetch tasks", err)
	}
	return tasks, nil
}

// Append stores a new task and returns it with its row handle
func (db *DB) Append(ctx context.Context, t models.Task) (models.Task, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO tasks (sl_no, date, title, description, comments, owner,
			collaborators, priority, category, status, no_of_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.SlNo, t.Date, t.Title, t.Description, t.Comments, t.Owner,
		t.Collaborators, t.Priority, t.Category, t.Status, t.Days)
	if err != nil {
		return models.Task{}, unavailable("Unable to create task", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.Task{}, unavailable("Unable to create task", err)
	}
	t.RowHandle = id
	return t, nil
}

// UpdateAt overwrites the task stored at rowHandle. The handle itself never changes.
func (db *DB) UpdateAt(ctx context.Context, rowHandle int64, t models.Task) error {
	result, err := db.ExecContext(ctx, `
		UPDATE tasks SET sl_no = ?, date = ?, title = ?, description = ?, comments = ?,
			owner = ?, collaborators = ?, priority = ?, category = ?, status = ?, no_of_days = ?
		WHERE row_handle = ?
	`, t.SlNo, t.Date, t.Title, t.Description, t.Comments, t.Owner,
		t.Collaborators, t.Priority, t.Category, t.Status, t.Days, rowHandle)
	if err != nil {
		return unavailable("Unable to update task", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return unavailable("Unable to update task", err)
	}
	if n == 0 {
		return apperr.NotFound("Task not found")
	}
	return nil
}
