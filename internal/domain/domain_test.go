package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestMemeID_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want MemeID
	}{
		{`{"id":"abc","url":"u"}`, "abc"},
		{`{"id":42,"url":"u"}`, "42"},
		{`{"id":null,"url":"u"}`, ""},
		{`{"url":"u"}`, ""},
	}
	for _, tt := range tests {
		var m Meme
		if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if m.ID != tt.want {
			t.Errorf("%s: got %q, want %q", tt.in, m.ID, tt.want)
		}
	}

	var m Meme
	if err := json.Unmarshal([]byte(`{"id":true}`), &m); err == nil {
		t.Error("boolean id should be rejected")
	}
}

func TestMessageEvent_Accessors(t *testing.T) {
	m := &MessageEvent{Caption: "cap"}
	if m.HasPhoto() {
		t.Error("no photos expected")
	}
	if _, ok := m.LargestPhoto(); ok {
		t.Error("LargestPhoto should report absence")
	}
	if m.Body() != "cap" {
		t.Errorf("body should fall back to caption, got %q", m.Body())
	}

	m.Text = "text"
	m.Photos = []PhotoVariant{{FileID: "s"}, {FileID: "l"}}
	if p, ok := m.LargestPhoto(); !ok || p.FileID != "l" {
		t.Errorf("expected last variant, got %+v", p)
	}
	if m.Body() != "text" {
		t.Errorf("text wins over caption, got %q", m.Body())
	}
}

func TestIsUserNotConnected(t *testing.T) {
	wrapped := fmt.Errorf("search: %w", &UserNotConnectedError{Message: "no user"})
	if !IsUserNotConnected(wrapped) {
		t.Error("wrapped not-connected error should match")
	}
	if IsUserNotConnected(&TransportError{Op: "get", Err: errors.New("refused")}) {
		t.Error("transport error is not not-connected")
	}
	if IsUserNotConnected(nil) {
		t.Error("nil is not not-connected")
	}
}

func TestSendResult_Err(t *testing.T) {
	if (SendResult{OK: true}).Err() != nil {
		t.Error("ok result has no error")
	}
	if (SendResult{ErrorCode: 400, Description: "Bad Request"}).Err() == nil {
		t.Error("not-ok result should be an error")
	}
}

func TestPhotoGroup(t *testing.T) {
	g := PhotoGroup([]Meme{{ID: "1", URL: "a"}, {ID: "2", URL: "b"}})
	if len(g.Items) != 2 || g.Items[0] != (MediaItem{Kind: MediaPhoto, URL: "a"}) || g.Items[1].URL != "b" {
		t.Fatalf("unexpected group %+v", g)
	}
}
