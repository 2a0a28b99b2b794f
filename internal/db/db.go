package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/logging"
)

//go:embed schema.sql
var schema string

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens the database at path and initializes the schema
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// unavailable logs a storage failure and hides its detail from callers
func unavailable(msg string, err error) error {
	lg := logging.Component("db")
	lg.Error().Err(err).Msg(msg)
	return apperr.StoreUnavailable(msg, err)
}

// inTx runs fn in a transaction and commits only if fn succeeds. Errors
// that already carry an application code pass through unchanged.
func (db *DB) inTx(ctx context.Context, msg string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(msg, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return unavailable(msg, err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(msg, err)
	}
	return nil
}

// GetSetting retrieves a setting value by key
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
