package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
)

const chatColumns = `id, participant1, participant2, created_at, last_activity_at`

func scanChat(row rowScanner) (models.Chat, error) {
	var c models.Chat
	err := row.Scan(&c.ID, &c.Participant1, &c.Participant2, &c.CreatedAt, &c.LastActivityAt)
	return c, err
}

// InsertChat stores a new chat
func (db *DB) InsertChat(ctx context.Context, c models.Chat) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Participant1, c.Participant2, c.CreatedAt.UTC(), c.LastActivityAt.UTC())
	if err != nil {
		return unavailable("Unable to create chat", err)
	}
	return nil
}

// GetChat retrieves a chat by ID
func (db *DB) GetChat(ctx context.Context, id string) (models.Chat, error) {
	c, err := scanChat(db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, apperr.NotFound("Chat not found")
	}
	if err != nil {
		return models.Chat{}, unavailable("Unable to fetch chat", err)
	}
	return c, nil
}

// ListChats returns all chats
func (db *DB) ListChats(ctx context.Context) ([]models.Chat, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+chatColumns+` FROM chats ORDER BY created_at ASC`)
	if err != nil {
		return nil, unavailable("Unable to fetch chats", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, unavailable("Unable to fetch chats", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("Unable to fetch chats", err)
	}
	return chats, nil
}

// AppendChatMessage inserts a chat message and records the chat's new
// activity in one transaction
func (db *DB) AppendChatMessage(ctx context.Context, m models.ChatMessage, c models.Chat) error {
	return db.inTx(ctx, "Unable to add chat message", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (id, chat_id, author, body, created_at) VALUES (?, ?, ?, ?, ?)
		`, m.ID, m.ChatID, m.Author, m.Body, m.CreatedAt.UTC()); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `UPDATE chats SET last_activity_at = ? WHERE id = ?`,
			c.LastActivityAt.UTC(), c.ID)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return apperr.NotFound("Chat not found")
		}
		return nil
	})
}

// ChatMessages retrieves all messages of a chat, oldest first
func (db *DB) ChatMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, chat_id, author, body, created_at
		FROM chat_messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, seq ASC
	`, chatID)
	if err != nil {
		return nil, unavailable("Unable to fetch chat messages", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Author, &m.Body, &m.CreatedAt); err != nil {
			return nil, unavailable("Unable to fetch chat messages", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("Unable to fetch chat messages", err)
	}
	return messages, nil
}
