package router

import "fmt"

// Links are the public memestorage pages quoted in replies.
type Links struct {
	Storage  string
	Register string
	Auth     string
}

func DefaultLinks() Links {
	return Links{
		Storage:  "memestorage.tk/storage",
		Register: "www.memestorage.tk/register",
		Auth:     "www.memestorage.tk/auth",
	}
}

// Texts holds every user-facing reply.
type Texts struct {
	Uploaded        string
	UploadFailed    string
	NotConnected    string
	SendPhoto       string
	Searching       string
	NoMemes         string
	NeedDescription string
	Register        string
	loginFormat     string
}

func NewTexts(l Links) Texts {
	return Texts{
		Uploaded:        "Your meme was successfully uploaded. " + l.Storage,
		UploadFailed:    "Oops, something went wrong. We'll fix it.",
		NotConnected:    "You haven't connected telegram with your memestorage account yet.",
		SendPhoto:       "Send me photo with your specific description and #tags.",
		Searching:       "searching...",
		NoMemes:         "No memes found on your request.",
		NeedDescription: "Type description after /search command.",
		Register:        fmt.Sprintf("Go to %s.", l.Register),
		loginFormat:     "Go to " + l.Auth + " and set your telegram id (%d) in settings.",
	}
}

// Login returns the login instructions for a chat.
func (t Texts) Login(chatID int64) string {
	return fmt.Sprintf(t.loginFormat, chatID)
}
