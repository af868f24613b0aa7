// Package router classifies inbound Telegram events and runs the matching
// flow: inline search, photo upload or a slash command.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"memebot/internal/domain"
	"memebot/internal/memes"
	"memebot/internal/metrics"
	"memebot/internal/reply"
	"memebot/internal/tokens"
)

const (
	CmdAdd      = "add"
	CmdSearch   = "search"
	CmdRegister = "register"
	CmdLogin    = "login"
	CmdStart    = "start"

	// Telegram caps inline answers at 50 results and media groups at 10 items.
	maxInlineResults = 50
	maxGroupSize     = 10
)

// Backend is the subset of the memestorage gateway the router drives.
type Backend interface {
	SearchPersonal(ctx context.Context, telegramID int64, description string) ([]domain.Meme, error)
	SearchPublic(ctx context.Context, telegramID int64, description string) ([]domain.Meme, error)
	CheckRegistration(ctx context.Context, telegramID int64) error
	AddMeme(ctx context.Context, up domain.Upload) (int, error)
}

// Auditor records a summary of every handled event.
type Auditor interface {
	Audit(ctx context.Context, entry domain.AuditEntry)
}

type Config struct {
	Platform          domain.Platform
	Replies           *reply.Dispatcher
	Backend           Backend
	Auditor           Auditor
	BotUsername       string
	Links             Links
	DeletePlaceholder bool
	Logger            *slog.Logger
	Now               func() time.Time
}

// Router is constructed once per process; Handle keeps no state between calls.
type Router struct {
	platform          domain.Platform
	replies           *reply.Dispatcher
	backend           Backend
	auditor           Auditor
	botUsername       string
	texts             Texts
	deletePlaceholder bool
	logger            *slog.Logger
	now               func() time.Time
}

func New(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Links == (Links{}) {
		cfg.Links = DefaultLinks()
	}
	return &Router{
		platform:          cfg.Platform,
		replies:           cfg.Replies,
		backend:           cfg.Backend,
		auditor:           cfg.Auditor,
		botUsername:       strings.TrimPrefix(cfg.BotUsername, "@"),
		texts:             NewTexts(cfg.Links),
		deletePlaceholder: cfg.DeletePlaceholder,
		logger:            cfg.Logger,
		now:               cfg.Now,
	}
}

// Handle runs the flow for one event and always finishes with an audit entry
// for inline queries and messages.
func (r *Router) Handle(ctx context.Context, ev domain.InboundEvent) {
	switch {
	case ev.Inline != nil:
		metrics.EventsInline.Inc()
		r.handleInline(ctx, ev.Inline)
		r.audit(ctx, domain.AuditEntry{
			RequestID: ev.RequestID,
			Kind:      domain.AuditInline,
			Username:  ev.Inline.FromUsername,
			ChatID:    ev.Inline.FromUserID,
			Text:      ev.Inline.Query,
		})
	case ev.Message != nil:
		metrics.EventsMessage.Inc()
		r.handleMessage(ctx, ev.Message)
		r.audit(ctx, domain.AuditEntry{
			RequestID: ev.RequestID,
			Kind:      domain.AuditMessage,
			Username:  ev.Message.FromUsername,
			ChatID:    ev.Message.ChatID,
			Text:      ev.Message.Body(),
		})
	default:
		metrics.EventsIgnored.Inc()
		r.logger.Debug("ignoring event without inline query or message", "request_id", ev.RequestID)
	}
}

func (r *Router) handleInline(ctx context.Context, q *domain.InlineQueryEvent) {
	description := strings.TrimSpace(q.Query)
	if description == "" {
		return
	}

	found := r.search(ctx, q.FromUserID, description)
	if len(found) == 0 {
		return
	}
	if len(found) > maxInlineResults {
		found = found[:maxInlineResults]
	}

	results := make([]domain.InlinePhoto, 0, len(found))
	for i, m := range found {
		results = append(results, domain.InlinePhoto{
			ID:       fmt.Sprintf("%d_public", i),
			PhotoURL: m.URL,
			ThumbURL: m.URL,
		})
	}
	res, err := r.platform.AnswerInlineQuery(ctx, q.QueryID, results)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		r.replies.Report(ctx, fmt.Sprintf("answerInlineQuery query=%s", q.QueryID), err)
	}
}

func (r *Router) handleMessage(ctx context.Context, m *domain.MessageEvent) {
	if m.HasPhoto() {
		r.handleUpload(ctx, m)
		return
	}

	commands := tokens.ExtractCommands(m.Text)
	if len(commands) == 0 {
		return
	}
	raw := commands[0]
	cmd, ok := r.ownCommand(raw)
	if !ok {
		return
	}

	switch cmd {
	case CmdAdd:
		r.handleAdd(ctx, m)
	case CmdSearch:
		r.handleSearch(ctx, m, raw)
	case CmdRegister:
		r.say(ctx, m.ChatID, r.texts.Register)
	case CmdLogin:
		r.say(ctx, m.ChatID, r.texts.Login(m.ChatID))
	case CmdStart:
		// reserved for onboarding
	default:
		r.logger.Debug("unknown command", "command", cmd, "chat_id", m.ChatID)
	}
}

// ownCommand strips a "@botname" suffix addressed to this bot. Commands
// addressed to another bot are rejected.
func (r *Router) ownCommand(raw string) (string, bool) {
	at := strings.IndexByte(raw, '@')
	if at < 0 {
		return raw, true
	}
	if r.botUsername != "" && strings.EqualFold(raw[at+1:], r.botUsername) {
		return raw[:at], true
	}
	return "", false
}

func (r *Router) handleUpload(ctx context.Context, m *domain.MessageEvent) {
	tags := tokens.ExtractTags(m.Caption)
	description := tokens.Description(m.Caption, tags)

	photo, _ := m.LargestPhoto()
	filePath, err := r.platform.GetFile(ctx, photo.FileID)
	if err != nil {
		r.replies.Report(ctx, fmt.Sprintf("getFile file_id=%s", photo.FileID), err)
		r.say(ctx, m.FromUserID, r.texts.UploadFailed)
		return
	}

	code, err := r.backend.AddMeme(ctx, domain.Upload{
		TelegramID:  m.FromUserID,
		Description: description,
		ImageURL:    r.platform.FileURL(filePath),
		Tags:        tags,
		ImageName:   filePath,
	})
	switch {
	case domain.IsUserNotConnected(err):
		r.say(ctx, m.ChatID, r.texts.NotConnected)
	case err == nil && code == http.StatusOK:
		r.say(ctx, m.FromUserID, r.texts.Uploaded)
	default:
		r.say(ctx, m.FromUserID, r.texts.UploadFailed)
	}
}

func (r *Router) handleAdd(ctx context.Context, m *domain.MessageEvent) {
	err := r.backend.CheckRegistration(ctx, m.FromUserID)
	switch {
	case err == nil:
		r.say(ctx, m.ChatID, r.texts.SendPhoto)
	case domain.IsUserNotConnected(err):
		r.say(ctx, m.ChatID, r.texts.NotConnected)
	default:
		r.logger.Warn("registration check failed", "chat_id", m.ChatID, "err", err)
		r.say(ctx, m.ChatID, r.texts.UploadFailed)
	}
}

func (r *Router) handleSearch(ctx context.Context, m *domain.MessageEvent, rawCommand string) {
	placeholder := r.replies.SendText(ctx, m.ChatID, r.texts.Searching)
	defer r.removePlaceholder(ctx, m.ChatID, placeholder)

	description := strings.TrimSpace(strings.ReplaceAll(m.Text, string(tokens.CommandPrefix)+rawCommand, ""))
	if description == "" {
		r.say(ctx, m.ChatID, r.texts.NeedDescription)
		return
	}

	found := r.search(ctx, m.FromUserID, description)
	if len(found) == 0 {
		r.say(ctx, m.ChatID, r.texts.NoMemes)
		return
	}
	r.sendMemes(ctx, m.ChatID, found)
}

// sendMemes sends memes as media groups. Items the user did not receive
// after the group degradation are retried as documents, then as bare URLs.
func (r *Router) sendMemes(ctx context.Context, chatID int64, found []domain.Meme) {
	for start := 0; start < len(found); start += maxGroupSize {
		group := domain.PhotoGroup(found[start:min(start+maxGroupSize, len(found))])

		// Telegram refuses media groups with fewer than two items.
		if len(group.Items) == 1 {
			item := group.Items[0]
			if !r.replies.Dispatch(ctx, chatID, domain.PhotoReply{URL: item.URL}) {
				r.resend(ctx, chatID, item)
			}
			continue
		}

		outcome := r.replies.SendMediaGroup(ctx, chatID, group.Items)
		for _, item := range outcome.Failed(group.Items) {
			r.resend(ctx, chatID, item)
		}
	}
}

// resend delivers an undelivered item as a document, then as its URL.
func (r *Router) resend(ctx context.Context, chatID int64, item domain.MediaItem) {
	if r.replies.Dispatch(ctx, chatID, domain.DocumentReply{URL: item.URL}) {
		return
	}
	r.say(ctx, chatID, item.URL)
}

func (r *Router) say(ctx context.Context, chatID int64, body string) {
	r.replies.Dispatch(ctx, chatID, domain.TextReply{Body: body})
}

func (r *Router) removePlaceholder(ctx context.Context, chatID int64, placeholder domain.SendResult) {
	if !r.deletePlaceholder || !placeholder.OK || placeholder.MessageID == 0 {
		return
	}
	res, err := r.platform.DeleteMessage(ctx, chatID, placeholder.MessageID)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		r.logger.Warn("cannot delete search placeholder", "chat_id", chatID, "err", err)
	}
}

// search runs the personal search, then the public one, and merges them.
// A user without a linked account simply gets public results.
func (r *Router) search(ctx context.Context, telegramID int64, description string) []domain.Meme {
	personal, err := r.backend.SearchPersonal(ctx, telegramID, description)
	if err != nil {
		if domain.IsUserNotConnected(err) {
			r.logger.Debug("personal search skipped, user not connected", "telegram_id", telegramID)
		} else {
			r.logger.Warn("personal search failed", "telegram_id", telegramID, "err", err)
		}
		personal = nil
	}
	public, err := r.backend.SearchPublic(ctx, telegramID, description)
	if err != nil {
		r.logger.Warn("public search failed", "telegram_id", telegramID, "err", err)
		public = nil
	}
	return memes.Merge(personal, public)
}

func (r *Router) audit(ctx context.Context, entry domain.AuditEntry) {
	if r.auditor == nil {
		return
	}
	entry.At = r.now()
	r.auditor.Audit(ctx, entry)
}
