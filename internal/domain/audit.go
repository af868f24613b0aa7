package domain

import "time"

type AuditKind string

const (
	AuditInline  AuditKind = "inline_query"
	AuditMessage AuditKind = "message"
)

// AuditEntry summarises one handled event for the admin chat.
type AuditEntry struct {
	RequestID string
	Kind      AuditKind
	Username  string
	ChatID    int64
	Text      string
	At        time.Time
}
