package reply

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"memebot/internal/domain"
	"memebot/internal/platformtest"
)

const (
	userChat  int64 = 100
	adminChat int64 = 999
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newDispatcher(p *platformtest.Fake) *Dispatcher {
	return New(Config{
		Platform: p,
		AdminID:  adminChat,
		Logger:   testLogger(),
		Now:      func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func TestSendText_OK(t *testing.T) {
	p := platformtest.New()
	d := newDispatcher(p)

	res := d.SendText(context.Background(), userChat, "hi")
	if !res.OK {
		t.Fatal("expected ok")
	}
	if len(p.To(adminChat)) != 0 {
		t.Error("no admin report expected")
	}
}

func TestSendText_FailureReportedToAdmin(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		if c.ChatID == userChat {
			return domain.SendResult{}, errors.New("connection reset")
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	d.SendText(context.Background(), userChat, "hi")

	reports := p.To(adminChat)
	if len(reports) != 1 {
		t.Fatalf("expected 1 admin report, got %d", len(reports))
	}
	if !strings.HasPrefix(reports[0].Text, "[2024-05-01T12:00:00Z]: connection reset in sendMessage") {
		t.Errorf("unexpected diagnostic %q", reports[0].Text)
	}
}

func TestSendText_AdminFailureDoesNotRecurse(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		return domain.SendResult{}, errors.New("down")
	}
	d := newDispatcher(p)

	d.SendText(context.Background(), adminChat, "audit")
	if n := len(p.Calls()); n != 1 {
		t.Fatalf("expected a single attempt, got %d calls", n)
	}
}

func TestSendPhoto_FallsBackToText(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		if c.Method == "sendPhoto" {
			return domain.SendResult{}, errors.New("wrong file identifier")
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	res := d.SendPhoto(context.Background(), userChat, "https://x/1.jpg", "")
	if !res.OK {
		t.Fatal("fallback text should have been delivered")
	}
	userCalls := p.To(userChat)
	if len(userCalls) != 2 || userCalls[1].Method != "sendMessage" || userCalls[1].Text != "https://x/1.jpg" {
		t.Fatalf("expected photo then url text, got %+v", userCalls)
	}
	if len(p.To(adminChat)) != 1 {
		t.Fatalf("expected admin report of original failure")
	}
}

func TestSendPhoto_NotOKAlsoFallsBack(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		if c.Method == "sendPhoto" {
			return platformtest.NotOK("Bad Request: failed to get HTTP URL content"), nil
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	d.SendPhoto(context.Background(), userChat, "https://x/1.jpg", "")
	if len(p.Method("sendMessage")) != 2 { // url text + admin report
		t.Fatalf("expected url text and admin report, got %+v", p.Calls())
	}
}

func TestSendDocument_FailureReported(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		if c.Method == "sendDocument" {
			return platformtest.NotOK("nope"), nil
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	if d.SendDocument(context.Background(), userChat, "https://x/1.gif").OK {
		t.Fatal("expected not ok")
	}
	if len(p.To(adminChat)) != 1 {
		t.Fatal("expected admin report")
	}
}

func TestSendMediaGroup_OK(t *testing.T) {
	p := platformtest.New()
	d := newDispatcher(p)

	items := []domain.MediaItem{{Kind: domain.MediaPhoto, URL: "a"}, {Kind: domain.MediaPhoto, URL: "b"}}
	out := d.SendMediaGroup(context.Background(), userChat, items)
	if !out.Grouped || !out.Delivered() {
		t.Fatalf("expected grouped delivery, got %+v", out)
	}
	if len(p.Method("sendPhoto")) != 0 {
		t.Error("no per-item sends expected")
	}
}

func TestSendMediaGroup_NotOKDegradesPerItem(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		if c.Method == "sendMediaGroup" {
			return platformtest.NotOK("group refused"), nil
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	items := []domain.MediaItem{{Kind: domain.MediaPhoto, URL: "a"}, {Kind: domain.MediaPhoto, URL: "b"}}
	out := d.SendMediaGroup(context.Background(), userChat, items)

	photos := p.Method("sendPhoto")
	if len(photos) != 2 {
		t.Fatalf("expected 2 individual sendPhoto calls, got %d", len(photos))
	}
	if photos[0].Text != "a" || photos[1].Text != "b" {
		t.Errorf("items sent out of order: %+v", photos)
	}
	if len(p.Method("sendMediaGroup")) != 1 {
		t.Error("group must not be retried")
	}
	if out.Grouped || !out.Delivered() || len(out.Items) != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestSendMediaGroup_VideoDegradesToText(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		if c.Method == "sendMediaGroup" {
			return platformtest.NotOK("group refused"), nil
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	items := []domain.MediaItem{{Kind: domain.MediaVideo, URL: "v.mp4"}, {Kind: domain.MediaPhoto, URL: "p.jpg"}}
	d.SendMediaGroup(context.Background(), userChat, items)

	calls := p.To(userChat)
	if len(calls) != 3 {
		t.Fatalf("expected group + 2 item sends, got %+v", calls)
	}
	if calls[1].Method != "sendMessage" || calls[1].Text != "v.mp4" {
		t.Errorf("video should degrade to url text, got %+v", calls[1])
	}
	if calls[2].Method != "sendPhoto" {
		t.Errorf("photo should degrade to sendPhoto, got %+v", calls[2])
	}
}

func TestSendMediaGroup_AggregateReportsPartialFailure(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		switch {
		case c.Method == "sendMediaGroup":
			return platformtest.NotOK("group refused"), nil
		case c.ChatID == userChat && c.Text == "b":
			return platformtest.NotOK("blocked"), nil
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	items := []domain.MediaItem{{Kind: domain.MediaPhoto, URL: "a"}, {Kind: domain.MediaPhoto, URL: "b"}, {Kind: domain.MediaPhoto, URL: "c"}}
	out := d.SendMediaGroup(context.Background(), userChat, items)
	if out.Delivered() {
		t.Fatal("outcome must reflect the failed middle item, not only the last one")
	}
	failed := out.Failed(items)
	if len(failed) != 1 || failed[0].URL != "b" {
		t.Fatalf("expected only b failed, got %+v", failed)
	}
}

func TestSendMediaGroup_TransportErrorNotDegraded(t *testing.T) {
	p := platformtest.New()
	p.Respond = func(c platformtest.Call) (domain.SendResult, error) {
		if c.Method == "sendMediaGroup" {
			return domain.SendResult{}, errors.New("timeout")
		}
		return domain.SendResult{OK: true}, nil
	}
	d := newDispatcher(p)

	items := []domain.MediaItem{{Kind: domain.MediaPhoto, URL: "a"}}
	out := d.SendMediaGroup(context.Background(), userChat, items)
	if out.Delivered() {
		t.Fatal("expected undelivered outcome")
	}
	if len(p.Method("sendPhoto")) != 0 {
		t.Error("transport failure must not trigger per-item degradation")
	}
	if len(p.To(adminChat)) != 1 {
		t.Error("expected admin report")
	}
	if len(out.Failed(items)) != 1 {
		t.Error("all items count as failed")
	}
}

func TestDispatch_RoutesIntents(t *testing.T) {
	p := platformtest.New()
	d := newDispatcher(p)
	ctx := context.Background()

	d.Dispatch(ctx, userChat, domain.TextReply{Body: "t"})
	d.Dispatch(ctx, userChat, domain.PhotoReply{URL: "p", Caption: "c"})
	d.Dispatch(ctx, userChat, domain.DocumentReply{URL: "d"})
	d.Dispatch(ctx, userChat, domain.MediaGroupReply{Items: []domain.MediaItem{{Kind: domain.MediaPhoto, URL: "m"}}})

	want := []string{"sendMessage", "sendPhoto", "sendDocument", "sendMediaGroup"}
	calls := p.Calls()
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %+v", len(want), calls)
	}
	for i, m := range want {
		if calls[i].Method != m {
			t.Errorf("call %d: expected %s, got %s", i, m, calls[i].Method)
		}
	}
	if calls[1].Caption != "c" {
		t.Errorf("caption not forwarded")
	}
}

func TestNotifyAdmin_DisabledWhenNoAdmin(t *testing.T) {
	p := platformtest.New()
	d := New(Config{Platform: p, Logger: testLogger()})
	d.NotifyAdmin(context.Background(), "x")
	if len(p.Calls()) != 0 {
		t.Fatal("no platform call expected without admin id")
	}
}

func TestFormatDiagnostic(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := FormatDiagnostic(at, "sendPhoto chat=1", errors.New("boom"))
	if got != "[2024-01-02T03:04:05Z]: boom in sendPhoto chat=1\n" {
		t.Fatalf("got %q", got)
	}
}
