package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"memebot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingHandler struct {
	mu       sync.Mutex
	events   []domain.InboundEvent
	deadline bool
}

func (h *recordingHandler) Handle(ctx context.Context, ev domain.InboundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, h.deadline = ctx.Deadline()
	h.events = append(h.events, ev)
}

func newTestWebhook(secret string) (*Webhook, *recordingHandler) {
	h := &recordingHandler{}
	w := NewWebhook(WebhookConfig{
		Secret:         secret,
		HandlerTimeout: time.Second,
		Metrics:        true,
		Handler:        h,
		Logger:         testLogger(),
	})
	return w, h
}

func post(t *testing.T, w *Webhook, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	w.Routes().ServeHTTP(rr, req)
	return rr
}

func assertOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp["status"] != "ok" {
		t.Fatalf(`expected {"status":"ok"}, got %s`, rr.Body.String())
	}
}

const inlineUpdate = `{"update_id":1,"inline_query":{"id":"q1","from":{"id":42,"is_bot":false,"first_name":"B","username":"bob"},"query":"cat","offset":""}}`

const photoUpdate = `{"update_id":2,"message":{"message_id":9,"date":0,
"chat":{"id":4242,"type":"private"},
"from":{"id":42,"is_bot":false,"first_name":"A","username":"alice"},
"caption":"funny #meme",
"photo":[{"file_id":"small","file_unique_id":"s","width":90,"height":90},{"file_id":"big","file_unique_id":"b","width":800,"height":800}]}}`

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	w, h := newTestWebhook("")
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
	if len(h.events) != 0 {
		t.Error("handler must not run")
	}
}

func TestWebhookHandler_InlineQuery(t *testing.T) {
	w, h := newTestWebhook("")

	assertOK(t, post(t, w, inlineUpdate, nil))

	if len(h.events) != 1 || h.events[0].Inline == nil {
		t.Fatalf("expected one inline event, got %+v", h.events)
	}
	ev := h.events[0]
	if ev.Inline.QueryID != "q1" || ev.Inline.FromUserID != 42 || ev.Inline.FromUsername != "bob" || ev.Inline.Query != "cat" {
		t.Errorf("unexpected inline event %+v", ev.Inline)
	}
	if ev.RequestID == "" {
		t.Error("expected a request id")
	}
	if !h.deadline {
		t.Error("handler context should carry the handler timeout")
	}
}

func TestWebhookHandler_PhotoMessage(t *testing.T) {
	w, h := newTestWebhook("")

	assertOK(t, post(t, w, photoUpdate, nil))

	if len(h.events) != 1 || h.events[0].Message == nil {
		t.Fatalf("expected one message event, got %+v", h.events)
	}
	m := h.events[0].Message
	if m.ChatID != 4242 || m.FromUserID != 42 || m.Caption != "funny #meme" {
		t.Errorf("unexpected message %+v", m)
	}
	largest, ok := m.LargestPhoto()
	if !ok || largest.FileID != "big" || largest.Width != 800 {
		t.Errorf("unexpected largest photo %+v", largest)
	}
}

func TestWebhookHandler_UnsupportedShapesAreNoops(t *testing.T) {
	bodies := []string{
		`not json`,
		`{}`,
		`{"update_id":3,"edited_message":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"},"text":"x"}}`,
		`{"update_id":4,"message":{"message_id":1,"date":0,"text":"/search cat"}}`,
		`{"update_id":5,"inline_query":{"id":"q","query":"cat","offset":""}}`,
	}
	for _, body := range bodies {
		w, h := newTestWebhook("")
		assertOK(t, post(t, w, body, nil))
		if len(h.events) != 0 {
			t.Errorf("%s: expected no event, got %+v", body, h.events)
		}
	}
}

func TestWebhookHandler_SecretToken(t *testing.T) {
	w, h := newTestWebhook("s3cret")

	rr := post(t, w, inlineUpdate, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("missing token: expected 403, got %d", rr.Code)
	}
	rr = post(t, w, inlineUpdate, map[string]string{secretTokenHeader: "wrong"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong token: expected 403, got %d", rr.Code)
	}
	if len(h.events) != 0 {
		t.Fatal("rejected requests must not reach the handler")
	}

	assertOK(t, post(t, w, inlineUpdate, map[string]string{secretTokenHeader: "s3cret"}))
	if len(h.events) != 1 {
		t.Fatal("valid token should be handled")
	}
}

func TestWebhook_HealthAndMetrics(t *testing.T) {
	w, _ := newTestWebhook("")

	rr := httptest.NewRecorder()
	w.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("healthz: %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	w.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "memebot_events_total") {
		t.Errorf("metrics: %d %q", rr.Code, rr.Body.String())
	}
}

func TestWebhook_MetricsDisabled(t *testing.T) {
	w := NewWebhook(WebhookConfig{Handler: &recordingHandler{}, Logger: testLogger()})

	rr := httptest.NewRecorder()
	w.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 when metrics are disabled, got %d", rr.Code)
	}
}

func TestEventFromUpdate_PrefersInline(t *testing.T) {
	u := tgbotapi.Update{
		InlineQuery: &tgbotapi.InlineQuery{ID: "q", From: &tgbotapi.User{ID: 1}, Query: "x"},
		Message:     &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 2}, From: &tgbotapi.User{ID: 3}},
	}
	ev, ok := EventFromUpdate(u)
	if !ok || ev.Inline == nil || ev.Message != nil {
		t.Fatalf("expected inline event, got %+v", ev)
	}
}

func TestEventFromUpdate_SkipsPhotoWithoutFileID(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 2},
		From:  &tgbotapi.User{ID: 3},
		Text:  "hi",
		Photo: []tgbotapi.PhotoSize{{FileID: ""}},
	}}
	ev, ok := EventFromUpdate(u)
	if !ok || ev.Message.HasPhoto() {
		t.Fatalf("expected text message without photos, got %+v", ev.Message)
	}
}

func TestProcess(t *testing.T) {
	h := &recordingHandler{}

	handled, err := Process(context.Background(), h, []byte(inlineUpdate))
	if err != nil || !handled {
		t.Fatalf("expected handled update, got %v, %v", handled, err)
	}
	if len(h.events) != 1 || h.events[0].RequestID == "" {
		t.Fatalf("unexpected events %+v", h.events)
	}

	handled, err = Process(context.Background(), h, []byte(`{"update_id":1}`))
	if err != nil || handled {
		t.Errorf("empty update should be skipped, got %v, %v", handled, err)
	}

	if _, err := Process(context.Background(), h, []byte("nope")); err == nil {
		t.Error("expected decode error")
	}
}

func TestVerifySecretToken(t *testing.T) {
	if !verifySecretToken("abc", "abc") {
		t.Error("equal tokens should verify")
	}
	if verifySecretToken("abd", "abc") || verifySecretToken("", "abc") {
		t.Error("different tokens should not verify")
	}
}
