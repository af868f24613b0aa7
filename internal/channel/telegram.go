package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"memebot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = 30
	defaultRequestTimeout    = 15 * time.Second
)

// HTTPClient is the transport used for Bot API calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type TelegramConfig struct {
	Token             string
	APIEndpoint       string // default tgbotapi.APIEndpoint
	FileEndpoint      string // default tgbotapi.FileEndpoint
	Client            HTTPClient
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Telegram implements domain.Platform on the Bot API.
type Telegram struct {
	token        string
	fileEndpoint string

	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewTelegram connects to the Bot API. The library calls getMe during
// construction, so an invalid token fails here.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: token is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultRequestTimeout}
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	cfg.Logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	burst := max(1, int(cfg.RequestsPerSecond))
	return &Telegram{
		token:        cfg.Token,
		fileEndpoint: cfg.FileEndpoint,
		bot:          bot,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:       cfg.Logger,
	}, nil
}

// Username is the bot's own username as reported by getMe.
func (t *Telegram) Username() string { return t.bot.Self.UserName }

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) (domain.SendResult, error) {
	return t.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, url, caption string) (domain.SendResult, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption
	photo.DisableNotification = true
	return t.send(ctx, photo)
}

func (t *Telegram) SendDocument(ctx context.Context, chatID int64, url string) (domain.SendResult, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileURL(url))
	doc.DisableNotification = true
	return t.send(ctx, doc)
}

func (t *Telegram) SendMediaGroup(ctx context.Context, chatID int64, items []domain.MediaItem) (domain.SendResult, error) {
	media := make([]interface{}, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case domain.MediaVideo:
			media = append(media, tgbotapi.NewInputMediaVideo(tgbotapi.FileURL(it.URL)))
		default:
			media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(it.URL)))
		}
	}
	group := tgbotapi.NewMediaGroup(chatID, media)
	group.DisableNotification = true

	if err := t.limiter.Wait(ctx); err != nil {
		return domain.SendResult{}, err
	}
	msgs, err := t.bot.SendMediaGroup(group)
	id := 0
	if len(msgs) > 0 {
		id = msgs[0].MessageID
	}
	return toResult(id, err)
}

func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) (domain.SendResult, error) {
	return t.request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID))
}

func (t *Telegram) AnswerInlineQuery(ctx context.Context, queryID string, results []domain.InlinePhoto) (domain.SendResult, error) {
	answers := make([]interface{}, 0, len(results))
	for _, r := range results {
		answers = append(answers, tgbotapi.NewInlineQueryResultPhotoWithThumb(r.ID, r.PhotoURL, r.ThumbURL))
	}
	return t.request(ctx, tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		Results:       answers,
	})
}

// GetFile resolves a file id to its path on the file server.
func (t *Telegram) GetFile(ctx context.Context, fileID string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("getFile %s: %w", fileID, err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("getFile %s: empty file path", fileID)
	}
	return file.FilePath, nil
}

// FileURL is the durable download URL for a path returned by GetFile.
func (t *Telegram) FileURL(filePath string) string {
	return fmt.Sprintf(t.fileEndpoint, t.token, filePath)
}

// SetWebhook registers url as the update destination. A non-empty secret is
// echoed back by Telegram in X-Telegram-Bot-Api-Secret-Token.
func (t *Telegram) SetWebhook(ctx context.Context, url, secret string, dropPending bool) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	params.AddBool("drop_pending_updates", dropPending)
	if _, err := t.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}

func (t *Telegram) DeleteWebhook(ctx context.Context, dropPending bool) error {
	res, err := t.request(ctx, tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	return nil
}

// WebhookInfo is the subset of getWebhookInfo shown by the CLI.
type WebhookInfo struct {
	URL                string
	PendingUpdateCount int
	LastErrorMessage   string
	LastErrorAt        time.Time
}

func (t *Telegram) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return WebhookInfo{}, err
	}
	info, err := t.bot.GetWebhookInfo()
	if err != nil {
		return WebhookInfo{}, fmt.Errorf("getWebhookInfo: %w", err)
	}
	out := WebhookInfo{
		URL:                info.URL,
		PendingUpdateCount: info.PendingUpdateCount,
		LastErrorMessage:   info.LastErrorMessage,
	}
	if info.LastErrorDate > 0 {
		out.LastErrorAt = time.Unix(int64(info.LastErrorDate), 0)
	}
	return out, nil
}

func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) (domain.SendResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return domain.SendResult{}, err
	}
	msg, err := t.bot.Send(c)
	return toResult(msg.MessageID, err)
}

// request is send for methods whose result is not a Message.
func (t *Telegram) request(ctx context.Context, c tgbotapi.Chattable) (domain.SendResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return domain.SendResult{}, err
	}
	_, err := t.bot.Request(c)
	return toResult(0, err)
}

// toResult separates a platform refusal (ok=false) from a transport failure.
func toResult(messageID int, err error) (domain.SendResult, error) {
	if err == nil {
		return domain.SendResult{OK: true, MessageID: messageID}, nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return domain.SendResult{
			OK:          false,
			ErrorCode:   apiErr.Code,
			Description: apiErr.Message,
		}, nil
	}
	return domain.SendResult{}, err
}

var _ domain.Platform = (*Telegram)(nil)
