package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
)

const threadColumns = `id, title, created_by, created_at, last_activity_at, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (models.Thread, error) {
	var t models.Thread
	err := row.Scan(&t.ID, &t.Title, &t.CreatedBy, &t.CreatedAt, &t.LastActivityAt, &t.Status)
	return t, err
}

// InsertThread stores a new thread
func (db *DB) InsertThread(ctx context.Context, t models.Thread) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO threads (`+threadColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.CreatedBy, t.CreatedAt.UTC(), t.LastActivityAt.UTC(), t.Status)
	if err != nil {
		return unavailable("Unable to create thread", err)
	}
	return nil
}

// GetThread retrieves a thread by ID
func (db *DB) GetThread(ctx context.Context, id string) (models.Thread, error) {
	t, err := scanThread(db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, apperr.NotFound("Thread not found")
	}
	if err != nil {
		return models.Thread{}, unavailable("Unable to fetch thread", err)
	}
	return t, nil
}

// ListThreads returns all threads in creation order
func (db *DB) ListThreads(ctx context.Context) ([]models.Thread, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+threadColumns+` FROM threads ORDER BY created_at ASC`)
	if err != nil {
		return nil, unavailable("Unable to fetch threads", err)
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, unavailable("Unable to fetch threads", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("Unable to fetch threads", err)
	}
	return threads, nil
}

// ReplaceThread overwrites a thread's mutable fields
func (db *DB) ReplaceThread(ctx context.Context, t models.Thread) error {
	result, err := db.ExecContext(ctx, `
		UPDATE threads SET title = ?, last_activity_at = ?, status = ?
		WHERE id = ?
	`, t.Title, t.LastActivityAt.UTC(), t.Status, t.ID)
	if err != nil {
		return unavailable("Unable to update thread", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("Thread not found")
	}
	return nil
}
