package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"memebot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the optional audit journal.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id  TEXT,
		kind        TEXT NOT NULL,
		username    TEXT,
		chat_id     INTEGER,
		text        TEXT,
		created_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Record(ctx context.Context, entry domain.AuditEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (request_id, kind, username, chat_id, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RequestID, string(entry.Kind), entry.Username, entry.ChatID, entry.Text, at.UTC(),
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, kind, username, chat_id, text, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			kind      string
			requestID sql.NullString
			username  sql.NullString
			text      sql.NullString
		)
		if err := rows.Scan(&requestID, &kind, &username, &e.ChatID, &text, &e.At); err != nil {
			return nil, err
		}
		e.RequestID = requestID.String
		e.Kind = domain.AuditKind(kind)
		e.Username = username.String
		e.Text = text.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
