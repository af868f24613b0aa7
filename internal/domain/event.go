package domain

// InboundEvent is a validated Telegram update. Exactly one of Inline or
// Message is set; an event with neither is ignored by the router.
type InboundEvent struct {
	RequestID string
	Inline    *InlineQueryEvent
	Message   *MessageEvent
}

type InlineQueryEvent struct {
	QueryID      string
	FromUserID   int64
	FromUsername string
	Query        string
}

type MessageEvent struct {
	MessageID    int
	ChatID       int64
	FromUserID   int64
	FromUsername string
	Text         string
	Caption      string
	Photos       []PhotoVariant // same image, smallest first
}

// PhotoVariant is one resolution of an uploaded photo.
type PhotoVariant struct {
	FileID string
	Width  int
	Height int
}

// HasPhoto reports whether the message carries an image upload.
func (m *MessageEvent) HasPhoto() bool { return len(m.Photos) > 0 }

// LargestPhoto returns the last (largest) photo variant.
func (m *MessageEvent) LargestPhoto() (PhotoVariant, bool) {
	if len(m.Photos) == 0 {
		return PhotoVariant{}, false
	}
	return m.Photos[len(m.Photos)-1], true
}

// Body returns the text, or the caption when the message has no text.
func (m *MessageEvent) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}
