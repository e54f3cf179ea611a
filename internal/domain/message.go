package domain

import (
	"fmt"
	"strings"
	"time"
)

const MaxTextLen = 4000

// FileURLPrefix is where stored blobs are served from.
const FileURLPrefix = "/api/files/"

// FileRef points at an uploaded blob.
type FileRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Message is immutable once appended to a room.
type Message struct {
	Author Identity  `json:"author"`
	Time   time.Time `json:"time"`
	Text   string    `json:"text,omitempty"`
	File   *FileRef  `json:"file,omitempty"`
}

// Validate enforces that a message carries text or a file.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" && m.File == nil {
		return fmt.Errorf("%w: message needs text or file", ErrValidation)
	}
	if len(m.Text) > MaxTextLen {
		return fmt.Errorf("%w: message too long", ErrValidation)
	}
	return nil
}
