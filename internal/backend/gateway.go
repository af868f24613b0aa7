// Package backend is the typed client for the memestorage HTTP backend.
//
// Every call is a single attempt. Searches degrade to an empty result and
// alert the admin chat on failure; only a 404 on a user-scoped endpoint is
// surfaced, as *domain.UserNotConnectedError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"memebot/internal/domain"
	"memebot/internal/metrics"
)

const (
	DefaultBaseURL = "https://www.memestorage.tk"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20

	PathPersonalSearch = "/oauth/telegram/user/search"
	PathPublicSearch   = "/api/storage/search/description"
	PathUser           = "/oauth/telegram/user"
	PathAddMeme        = "/oauth/telegram/user/add"
)

type Config struct {
	BaseURL string
	Timeout time.Duration // per call
	Client  *http.Client
	Admin   domain.AdminNotifier
	Logger  *slog.Logger
}

// Gateway issues search, registration and upload calls against the backend.
type Gateway struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	admin   domain.AdminNotifier
	logger  *slog.Logger
}

func New(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  cfg.Client,
		admin:   cfg.Admin,
		logger:  cfg.Logger,
	}
}

type searchResponse struct {
	Memes []domain.Meme `json:"memes"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type addMemeRequest struct {
	TelegramID  string   `json:"telegram_id"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	Tags        []string `json:"tags"`
	ImageName   string   `json:"image_name"`
}

// response is a completed HTTP exchange, kept whole for diagnostics.
type response struct {
	method string
	url    string
	status int
	body   []byte
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

func (r *response) String() string {
	return fmt.Sprintf("%s %s -> %d: %s", r.method, r.url, r.status, truncate(string(r.body), 500))
}

// SearchPersonal searches the user's own storage.
func (g *Gateway) SearchPersonal(ctx context.Context, telegramID int64, description string) ([]domain.Meme, error) {
	resp, err := g.get(ctx, "search personal", PathPersonalSearch, searchQuery(telegramID, description))
	if err != nil {
		g.alert(ctx, err.Error())
		return nil, nil
	}
	if resp.status == http.StatusNotFound {
		return nil, notConnected(resp)
	}
	return g.decodeMemes(ctx, resp), nil
}

// SearchPublic searches the public storage. It never returns an error; every
// failure degrades to an empty result.
func (g *Gateway) SearchPublic(ctx context.Context, telegramID int64, description string) ([]domain.Meme, error) {
	resp, err := g.get(ctx, "search public", PathPublicSearch, searchQuery(telegramID, description))
	if err != nil {
		g.alert(ctx, err.Error())
		return nil, nil
	}
	return g.decodeMemes(ctx, resp), nil
}

// CheckRegistration returns *domain.UserNotConnectedError when the Telegram
// account is not linked. Other failures are reported and treated as success.
func (g *Gateway) CheckRegistration(ctx context.Context, telegramID int64) error {
	q := url.Values{}
	q.Set("telegram_id", strconv.FormatInt(telegramID, 10))
	resp, err := g.get(ctx, "check registration", PathUser, q)
	if err != nil {
		g.alert(ctx, err.Error())
		return nil
	}
	if resp.status == http.StatusNotFound {
		return notConnected(resp)
	}
	if !resp.ok() {
		g.alert(ctx, (&domain.UnexpectedStatusError{Op: "check registration", Code: resp.status, Body: truncate(string(resp.body), 500)}).Error())
	}
	return nil
}

// AddMeme uploads a meme and returns the backend status code.
func (g *Gateway) AddMeme(ctx context.Context, up domain.Upload) (int, error) {
	tags := up.Tags
	if tags == nil {
		tags = []string{}
	}
	payload, err := json.Marshal(addMemeRequest{
		TelegramID:  strconv.FormatInt(up.TelegramID, 10),
		Description: up.Description,
		ImageURL:    up.ImageURL,
		Tags:        tags,
		ImageName:   up.ImageName,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal upload: %w", err)
	}

	resp, err := g.do(ctx, "add meme", http.MethodPost, g.baseURL+PathAddMeme, payload)
	if err != nil {
		g.alert(ctx, err.Error())
		return 0, err
	}
	if resp.status != http.StatusOK {
		g.alert(ctx, "add meme failed: "+resp.String())
	}
	if resp.status == http.StatusNotFound {
		return 0, notConnected(resp)
	}
	return resp.status, nil
}

func searchQuery(telegramID int64, description string) url.Values {
	q := url.Values{}
	q.Set("telegram_id", strconv.FormatInt(telegramID, 10))
	q.Set("description", description)
	return q
}

func (g *Gateway) get(ctx context.Context, op, path string, query url.Values) (*response, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return g.do(ctx, op, http.MethodGet, u, nil)
}

func (g *Gateway) do(ctx context.Context, op, method, u string, body []byte) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	metrics.BackendRequests.Inc()
	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.BackendLatency.Since(start)
	if err != nil {
		metrics.BackendFailures.Inc()
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.BackendFailures.Inc()
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	g.logger.Debug("backend response", "op", op, "status", resp.StatusCode, "bytes", len(data))
	return &response{method: method, url: u, status: resp.StatusCode, body: data}, nil
}

// decodeMemes extracts the memes list, alerting on anything but a parseable
// 2xx body.
func (g *Gateway) decodeMemes(ctx context.Context, resp *response) []domain.Meme {
	if !resp.ok() {
		metrics.BackendFailures.Inc()
		g.alert(ctx, "backend search failed: "+resp.String())
		return nil
	}
	if len(bytes.TrimSpace(resp.body)) == 0 {
		metrics.BackendFailures.Inc()
		g.alert(ctx, "backend search returned empty body: "+resp.String())
		return nil
	}
	var sr searchResponse
	if err := json.Unmarshal(resp.body, &sr); err != nil {
		metrics.BackendFailures.Inc()
		g.alert(ctx, fmt.Sprintf("backend search returned invalid JSON (%v): %s", err, resp.String()))
		return nil
	}
	return sr.Memes
}

func (g *Gateway) alert(ctx context.Context, text string) {
	g.logger.Warn("backend degraded", "detail", text)
	if g.admin != nil {
		g.admin.NotifyAdmin(ctx, text)
	}
}

func notConnected(resp *response) error {
	var er errorResponse
	_ = json.Unmarshal(resp.body, &er)
	return &domain.UserNotConnectedError{Message: er.Message}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
