package domain

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaItem is one attachment of a media group.
type MediaItem struct {
	Kind MediaKind
	URL  string
}

// ReplyIntent is what the router wants to show the user. Implemented by
// TextReply, PhotoReply, DocumentReply and MediaGroupReply.
type ReplyIntent interface {
	replyIntent()
}

type TextReply struct {
	Body string
}

type PhotoReply struct {
	URL     string
	Caption string
}

type DocumentReply struct {
	URL string
}

type MediaGroupReply struct {
	Items []MediaItem
}

func (TextReply) replyIntent()       {}
func (PhotoReply) replyIntent()      {}
func (DocumentReply) replyIntent()   {}
func (MediaGroupReply) replyIntent() {}

// PhotoGroup builds a media group of photos from memes, in order.
func PhotoGroup(memes []Meme) MediaGroupReply {
	items := make([]MediaItem, 0, len(memes))
	for _, m := range memes {
		items = append(items, MediaItem{Kind: MediaPhoto, URL: m.URL})
	}
	return MediaGroupReply{Items: items}
}
