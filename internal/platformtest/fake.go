// Package platformtest provides an in-memory domain.Platform for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"memebot/internal/domain"
)

// Call records one platform request.
type Call struct {
	Method    string
	ChatID    int64
	Text      string // message text, photo/document URL
	Caption   string
	Items     []domain.MediaItem
	MessageID int
	QueryID   string
	Results   []domain.InlinePhoto
	FileID    string
}

// Fake records every call. Respond, when set, decides the answer for send-type
// calls; otherwise every call succeeds.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	nextID  int
	Respond func(c Call) (domain.SendResult, error)
	Files   map[string]string // file id -> file path
	FileErr error
}

func New() *Fake {
	return &Fake{Files: map[string]string{}}
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Method returns the recorded calls with the given method name.
func (f *Fake) Method(name string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == name {
			out = append(out, c)
		}
	}
	return out
}

// To returns the recorded calls targeting chatID.
func (f *Fake) To(chatID int64) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.ChatID == chatID {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(c Call) (domain.SendResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.nextID++
	id := f.nextID
	respond := f.Respond
	f.mu.Unlock()

	if respond != nil {
		return respond(c)
	}
	return domain.SendResult{OK: true, MessageID: id}, nil
}

func (f *Fake) SendMessage(ctx context.Context, chatID int64, text string) (domain.SendResult, error) {
	return f.record(Call{Method: "sendMessage", ChatID: chatID, Text: text})
}

func (f *Fake) SendPhoto(ctx context.Context, chatID int64, url, caption string) (domain.SendResult, error) {
	return f.record(Call{Method: "sendPhoto", ChatID: chatID, Text: url, Caption: caption})
}

func (f *Fake) SendDocument(ctx context.Context, chatID int64, url string) (domain.SendResult, error) {
	return f.record(Call{Method: "sendDocument", ChatID: chatID, Text: url})
}

func (f *Fake) SendMediaGroup(ctx context.Context, chatID int64, items []domain.MediaItem) (domain.SendResult, error) {
	return f.record(Call{Method: "sendMediaGroup", ChatID: chatID, Items: append([]domain.MediaItem(nil), items...)})
}

func (f *Fake) DeleteMessage(ctx context.Context, chatID int64, messageID int) (domain.SendResult, error) {
	return f.record(Call{Method: "deleteMessage", ChatID: chatID, MessageID: messageID})
}

func (f *Fake) AnswerInlineQuery(ctx context.Context, queryID string, results []domain.InlinePhoto) (domain.SendResult, error) {
	return f.record(Call{Method: "answerInlineQuery", QueryID: queryID, Results: append([]domain.InlinePhoto(nil), results...)})
}

func (f *Fake) GetFile(ctx context.Context, fileID string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: "getFile", FileID: fileID})
	path, ok := f.Files[fileID]
	ferr := f.FileErr
	f.mu.Unlock()
	if ferr != nil {
		return "", ferr
	}
	if !ok {
		return "", errors.New("file not found")
	}
	return path, nil
}

func (f *Fake) FileURL(filePath string) string {
	return fmt.Sprintf("https://files.test/%s", filePath)
}

// NotOK is a platform refusal.
func NotOK(description string) domain.SendResult {
	return domain.SendResult{OK: false, ErrorCode: 400, Description: description}
}

var _ domain.Platform = (*Fake)(nil)
