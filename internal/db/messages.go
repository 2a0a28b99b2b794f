package db

import (
	"context"
	"database/sql"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
)

// AppendMessage inserts a message and records its thread's new activity in
// one transaction
func (db *DB) AppendMessage(ctx context.Context, m models.Message, t models.Thread) error {
	return db.inTx(ctx, "Unable to add message", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_messages (id, thread_id, parent_id, author, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.ID, m.ThreadID, m.ParentID, m.Author, m.Body, m.CreatedAt.UTC()); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE threads SET last_activity_at = ?, status = ? WHERE id = ?
		`, t.LastActivityAt.UTC(), t.Status, t.ID)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return apperr.NotFound("Thread not found")
		}
		return nil
	})
}

// ThreadMessages retrieves all messages of a thread, oldest first
func (db *DB) ThreadMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, thread_id, parent_id, author, body, created_at
		FROM thread_messages
		WHERE thread_id = ?
		ORDER BY created_at ASC, seq ASC
	`, threadID)
	if err != nil {
		return nil, unavailable("Unable to fetch messages", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var parent sql.NullString
		if err := rows.Scan(&m.ID, &m.ThreadID, &parent, &m.Author, &m.Body, &m.CreatedAt); err != nil {
			return nil, unavailable("Unable to fetch messages", err)
		}
		if parent.Valid {
			m.ParentID = &parent.String
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("Unable to fetch messages", err)
	}
	return messages, nil
}
