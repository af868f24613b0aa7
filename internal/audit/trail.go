// Package audit summarises each handled event to the admin chat and,
// optionally, to a local SQLite journal.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"memebot/internal/domain"
)

// Store persists audit entries.
type Store interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

type TrailConfig struct {
	Admin  domain.AdminNotifier
	Store  Store // optional
	Logger *slog.Logger
}

// Trail implements router.Auditor.
type Trail struct {
	admin  domain.AdminNotifier
	store  Store
	logger *slog.Logger
}

func NewTrail(cfg TrailConfig) *Trail {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Trail{admin: cfg.Admin, store: cfg.Store, logger: cfg.Logger}
}

func (t *Trail) Audit(ctx context.Context, entry domain.AuditEntry) {
	t.logger.Info("event handled",
		"request_id", entry.RequestID,
		"kind", entry.Kind,
		"username", entry.Username,
		"chat_id", entry.ChatID,
	)
	if t.admin != nil {
		t.admin.NotifyAdmin(ctx, FormatEntry(entry))
	}
	if t.store != nil {
		if err := t.store.Record(ctx, entry); err != nil {
			t.logger.Error("audit journal write failed", "request_id", entry.RequestID, "err", err)
		}
	}
}

type inlineSummary struct {
	From struct {
		Username string `json:"username"`
		Query    string `json:"query"`
	} `json:"from"`
}

type messageSummary struct {
	From struct {
		Username string `json:"username"`
		Text     string `json:"text"`
	} `json:"from"`
}

// FormatEntry renders the admin chat summary:
// {"from":{"username":...,"query":...}} for inline queries and
// {"from":{"username":...,"text":...}} for messages. Non-ASCII text is kept as is.
func FormatEntry(entry domain.AuditEntry) string {
	var v any
	if entry.Kind == domain.AuditInline {
		var s inlineSummary
		s.From.Username = entry.Username
		s.From.Query = entry.Text
		v = s
	} else {
		var s messageSummary
		s.From.Username = entry.Username
		s.From.Text = entry.Text
		v = s
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return entry.Username + ": " + entry.Text
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
