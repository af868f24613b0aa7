package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"memebot/internal/domain"
	"memebot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	secretTokenHeader     = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes        = 1 << 20
	defaultHandlerTimeout = 60 * time.Second
)

// EventHandler processes one validated inbound event.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.InboundEvent)
}

// WebhookConfig configures the webhook HTTP server.
type WebhookConfig struct {
	Port           int
	Path           string        // update endpoint (default: /webhook)
	Secret         string        // expected X-Telegram-Bot-Api-Secret-Token, empty disables the check
	HandlerTimeout time.Duration // upper bound for one event
	Metrics        bool          // serve /metrics
	Handler        EventHandler
	Logger         *slog.Logger
}

// Webhook receives Telegram updates over HTTP and hands them to the router.
type Webhook struct {
	port    int
	path    string
	secret  string
	timeout time.Duration
	metrics bool
	handler EventHandler
	logger  *slog.Logger
	server  *http.Server
}

// NewWebhook creates a new webhook server.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Webhook{
		port:    cfg.Port,
		path:    cfg.Path,
		secret:  cfg.Secret,
		timeout: cfg.HandlerTimeout,
		metrics: cfg.Metrics,
		handler: cfg.Handler,
		logger:  cfg.Logger,
	}
}

// Routes returns the HTTP handler with every endpoint mounted.
func (w *Webhook) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleWebhook)
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(rw, "ok")
	})
	if w.metrics {
		mux.Handle("GET /metrics", metrics.Collector.Handler())
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *Webhook) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", w.port),
		Handler:           w.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      w.timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "port", w.port, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.WebhookRejected.Inc()
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if w.secret != "" && !verifySecretToken(r.Header.Get(secretTokenHeader), w.secret) {
		metrics.WebhookRejected.Inc()
		w.logger.Warn("webhook secret token mismatch", "remote", r.RemoteAddr)
		http.Error(rw, "Forbidden", http.StatusForbidden)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	if err != nil {
		metrics.WebhookRejected.Inc()
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}

	requestID := uuid.NewString()
	logger := w.logger.With("request_id", requestID)

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		logger.Warn("webhook body is not a telegram update", "err", err, "body_len", len(body))
		writeOK(rw)
		return
	}

	ev, ok := EventFromUpdate(update)
	if !ok {
		logger.Debug("ignoring unsupported update", "update_id", update.UpdateID)
		writeOK(rw)
		return
	}
	ev.RequestID = requestID

	// Telegram may drop the connection on a slow answer; the event still runs
	// to completion within the handler timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), w.timeout)
	defer cancel()

	start := time.Now()
	w.handler.Handle(ctx, ev)
	logger.Info("update handled", "update_id", update.UpdateID, "duration", time.Since(start))

	writeOK(rw)
}

// Process decodes one raw update and runs it through handler. Used for the
// one-shot CLI path where the body comes from a file or stdin.
func Process(ctx context.Context, handler EventHandler, body []byte) (bool, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return false, fmt.Errorf("decode update: %w", err)
	}
	ev, ok := EventFromUpdate(update)
	if !ok {
		return false, nil
	}
	ev.RequestID = uuid.NewString()
	handler.Handle(ctx, ev)
	return true, nil
}

// EventFromUpdate validates an update into an inbound event. Updates that are
// neither an inline query nor a message with chat and sender are rejected.
func EventFromUpdate(u tgbotapi.Update) (domain.InboundEvent, bool) {
	if q := u.InlineQuery; q != nil && q.From != nil {
		return domain.InboundEvent{Inline: &domain.InlineQueryEvent{
			QueryID:      q.ID,
			FromUserID:   q.From.ID,
			FromUsername: q.From.UserName,
			Query:        q.Query,
		}}, true
	}

	m := u.Message
	if m == nil || m.Chat == nil || m.From == nil {
		return domain.InboundEvent{}, false
	}
	msg := &domain.MessageEvent{
		MessageID:    m.MessageID,
		ChatID:       m.Chat.ID,
		FromUserID:   m.From.ID,
		FromUsername: m.From.UserName,
		Text:         m.Text,
		Caption:      m.Caption,
	}
	for _, p := range m.Photo {
		if p.FileID == "" {
			continue
		}
		msg.Photos = append(msg.Photos, domain.PhotoVariant{
			FileID: p.FileID,
			Width:  p.Width,
			Height: p.Height,
		})
	}
	return domain.InboundEvent{Message: msg}, true
}

func verifySecretToken(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeOK(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}
