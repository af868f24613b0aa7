package domain

import (
	"context"
	"fmt"
)

// SendResult is the platform's logical answer to a request. A non-nil error
// returned alongside it means the request never got a logical answer.
type SendResult struct {
	OK          bool
	MessageID   int
	ErrorCode   int
	Description string
}

// Err converts a not-ok result into an error value.
func (r SendResult) Err() error {
	if r.OK {
		return nil
	}
	if r.ErrorCode == 0 && r.Description == "" {
		return fmt.Errorf("platform rejected request")
	}
	return fmt.Errorf("platform rejected request: %d %s", r.ErrorCode, r.Description)
}

// InlinePhoto is one inline-query answer entry.
type InlinePhoto struct {
	ID       string
	PhotoURL string
	ThumbURL string
}

// Platform is the chat platform capability set used by the bot.
type Platform interface {
	SendMessage(ctx context.Context, chatID int64, text string) (SendResult, error)
	SendPhoto(ctx context.Context, chatID int64, url, caption string) (SendResult, error)
	SendDocument(ctx context.Context, chatID int64, url string) (SendResult, error)
	SendMediaGroup(ctx context.Context, chatID int64, items []MediaItem) (SendResult, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) (SendResult, error)
	AnswerInlineQuery(ctx context.Context, queryID string, results []InlinePhoto) (SendResult, error)
	// GetFile resolves a file id to its server-side file path.
	GetFile(ctx context.Context, fileID string) (string, error)
	// FileURL turns a file path into a downloadable URL.
	FileURL(filePath string) string
}

// AdminNotifier delivers diagnostics to the administrative chat.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string)
}
