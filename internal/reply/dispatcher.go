// Package reply sends replies to the chat, degrading to lower-fidelity
// primitives when the platform refuses one, and reports terminal failures to
// the admin chat.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memebot/internal/domain"
	"memebot/internal/metrics"
)

type Config struct {
	Platform domain.Platform
	AdminID  int64 // 0 disables admin delivery; diagnostics are still logged
	Logger   *slog.Logger
	Now      func() time.Time
}

// Dispatcher wraps the platform send primitives with fallback behaviour.
type Dispatcher struct {
	platform domain.Platform
	adminID  int64
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		platform: cfg.Platform,
		adminID:  cfg.AdminID,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// ItemOutcome is the delivery result of one media-group item after degradation.
type ItemOutcome struct {
	Item   domain.MediaItem
	Result domain.SendResult
}

// MediaGroupOutcome aggregates a media-group send.
type MediaGroupOutcome struct {
	Grouped bool          // the combined group was accepted
	Items   []ItemOutcome // per-item results, set only when the group degraded
}

// Delivered reports whether the user received every item in some form.
func (o MediaGroupOutcome) Delivered() bool {
	if o.Grouped {
		return true
	}
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if !it.Result.OK {
			return false
		}
	}
	return true
}

// Failed returns the items the user did not receive.
func (o MediaGroupOutcome) Failed(items []domain.MediaItem) []domain.MediaItem {
	if o.Grouped {
		return nil
	}
	if len(o.Items) == 0 {
		return items
	}
	var failed []domain.MediaItem
	for _, it := range o.Items {
		if !it.Result.OK {
			failed = append(failed, it.Item)
		}
	}
	return failed
}

// SendText sends a plain text message.
func (d *Dispatcher) SendText(ctx context.Context, chatID int64, body string) domain.SendResult {
	res, err := d.platform.SendMessage(ctx, chatID, body)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		op := fmt.Sprintf("sendMessage chat=%d", chatID)
		if chatID == d.adminID {
			d.logger.Error("admin message failed", "op", op, "err", err)
		} else {
			d.Report(ctx, op, err)
		}
	}
	return res
}

// SendPhoto sends a photo by URL. When the platform refuses it the URL is sent
// as text instead and the original failure goes to the admin chat; the
// returned result is then that of the text message.
func (d *Dispatcher) SendPhoto(ctx context.Context, chatID int64, url, caption string) domain.SendResult {
	res, err := d.platform.SendPhoto(ctx, chatID, url, caption)
	if err == nil && res.OK {
		return res
	}
	if err == nil {
		err = res.Err()
	}
	metrics.ReplyFallbacks.Inc()
	d.logger.Warn("photo send failed, falling back to text", "chat_id", chatID, "err", err)
	fallback := d.SendText(ctx, chatID, url)
	d.Report(ctx, fmt.Sprintf("sendPhoto chat=%d url=%s", chatID, url), err)
	return fallback
}

// SendDocument sends a document by URL.
func (d *Dispatcher) SendDocument(ctx context.Context, chatID int64, url string) domain.SendResult {
	res, err := d.platform.SendDocument(ctx, chatID, url)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		d.Report(ctx, fmt.Sprintf("sendDocument chat=%d url=%s", chatID, url), err)
	}
	return res
}

// SendMediaGroup sends items as one group. If the platform answers not-ok,
// every item is sent on its own: photos through SendPhoto, videos as their
// URL. A transport failure is reported and not degraded.
func (d *Dispatcher) SendMediaGroup(ctx context.Context, chatID int64, items []domain.MediaItem) MediaGroupOutcome {
	if len(items) == 0 {
		return MediaGroupOutcome{Grouped: true}
	}

	res, err := d.platform.SendMediaGroup(ctx, chatID, items)
	if err != nil {
		d.Report(ctx, fmt.Sprintf("sendMediaGroup chat=%d items=%d", chatID, len(items)), err)
		return MediaGroupOutcome{}
	}
	if res.OK {
		return MediaGroupOutcome{Grouped: true}
	}

	metrics.ReplyFallbacks.Inc()
	d.logger.Warn("media group refused, sending items one by one",
		"chat_id", chatID, "items", len(items), "err", res.Err())

	outcome := MediaGroupOutcome{Items: make([]ItemOutcome, 0, len(items))}
	for _, item := range items {
		var r domain.SendResult
		switch item.Kind {
		case domain.MediaVideo:
			r = d.SendText(ctx, chatID, item.URL)
		default:
			r = d.SendPhoto(ctx, chatID, item.URL, "")
		}
		outcome.Items = append(outcome.Items, ItemOutcome{Item: item, Result: r})
	}
	return outcome
}

// Dispatch sends a reply intent with the matching primitive and reports
// whether the user received it.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64, intent domain.ReplyIntent) bool {
	switch in := intent.(type) {
	case domain.TextReply:
		return d.SendText(ctx, chatID, in.Body).OK
	case domain.PhotoReply:
		return d.SendPhoto(ctx, chatID, in.URL, in.Caption).OK
	case domain.DocumentReply:
		return d.SendDocument(ctx, chatID, in.URL).OK
	case domain.MediaGroupReply:
		return d.SendMediaGroup(ctx, chatID, in.Items).Delivered()
	default:
		d.logger.Error("unknown reply intent", "type", fmt.Sprintf("%T", intent))
		return false
	}
}

// NotifyAdmin sends text to the admin chat. Failures are only logged.
func (d *Dispatcher) NotifyAdmin(ctx context.Context, text string) {
	if d.adminID == 0 {
		d.logger.Info("admin notice", "text", text)
		return
	}
	metrics.AdminReports.Inc()
	res, err := d.platform.SendMessage(ctx, d.adminID, text)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		d.logger.Error("admin notice not delivered", "err", err, "text", text)
	}
}

// Report sends a formatted diagnostic for a failed operation to the admin chat.
func (d *Dispatcher) Report(ctx context.Context, op string, err error) {
	d.logger.Error("operation failed", "op", op, "err", err)
	d.NotifyAdmin(ctx, FormatDiagnostic(d.now(), op, err))
}

// FormatDiagnostic renders "[<RFC3339>]: <error> in <operation>".
func FormatDiagnostic(at time.Time, op string, err error) string {
	return fmt.Sprintf("[%s]: %v in %s\n", at.Format(time.RFC3339), err, op)
}
