package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// HistoryLimit is the number of messages a room retains.
	HistoryLimit   = 200
	MaxRoomNameLen = 64
)

type RoomName string

func (n RoomName) Validate() error {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return fmt.Errorf("%w: room name required", ErrValidation)
	}
	if len(s) > MaxRoomNameLen {
		return fmt.Errorf("%w: room name too long", ErrValidation)
	}
	return nil
}

// Room is a point-in-time copy of a live room record.
type Room struct {
	Name         RoomName  `json:"name"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	History      []Message `json:"history,omitempty"`
	MessageCount int       `json:"messageCount"`
}

func (r *Room) HasPassword() bool { return r.Password != "" }

// CheckPassword reports ErrUnauthorized when pw does not open the room.
func (r *Room) CheckPassword(pw string) error {
	if r.Password != "" && r.Password != pw {
		return fmt.Errorf("%w: wrong room password", ErrUnauthorized)
	}
	return nil
}

// AppendCapped appends msg and evicts the oldest entries beyond limit.
// The returned slice never aliases history.
func AppendCapped(history []Message, msg Message, limit int) []Message {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	n := len(history) + 1
	start := 0
	if n > limit {
		start = n - limit
	}
	out := make([]Message, 0, n-start)
	if start < len(history) {
		out = append(out, history[start:]...)
	}
	return append(out, msg)
}
