package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Meme is a stored image returned by the backend. Identity is ID.
type Meme struct {
	ID          MemeID   `json:"id"`
	URL         string   `json:"url"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// MemeID accepts both numeric and string ids from the backend.
type MemeID string

func (id *MemeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = MemeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*id = MemeID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = MemeID(n.String())
	return nil
}

// Upload is the body of an add-meme request.
type Upload struct {
	TelegramID  int64
	Description string
	ImageURL    string
	Tags        []string
	ImageName   string
}
