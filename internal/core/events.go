package core

import (
	"time"

	"github.com/dkeye/Chat/internal/domain"
)

// Inbound event types.
const (
	EventAuth          = "auth"
	EventRoomJoin      = "room:join"
	EventRoomLeave     = "room:leave"
	EventChatMessage   = "chat:message"
	EventAdminGetState = "admin:getState"
	EventPing          = "ping"
	EventWhoAmI        = "whoami"
)

// Outbound event types.
const (
	EventAuthOK         = "auth:ok"
	EventRoomJoined     = "room:joined"
	EventRoomLeft       = "room:left"
	EventPresenceUpdate = "presence:update"
	EventAdminState     = "admin:state"
	EventPong           = "pong"
	EventError          = "error"
)

type PresenceType string

const (
	PresenceJoin        PresenceType = "join"
	PresenceLeave       PresenceType = "leave"
	PresenceRoomCreated PresenceType = "roomCreated"
	PresenceRoomDeleted PresenceType = "roomDeleted"
)

type RoomJoined struct {
	Type        string           `json:"type"`
	Room        domain.RoomName  `json:"room"`
	MemberCount int              `json:"memberCount"`
	History     []domain.Message `json:"history"`
}

type RoomLeft struct {
	Type        string          `json:"type"`
	Room        domain.RoomName `json:"room"`
	MemberCount int             `json:"memberCount"`
}

type PresenceUpdate struct {
	Type         string          `json:"type"`
	Room         domain.RoomName `json:"room"`
	MemberCount  int             `json:"memberCount"`
	PresenceType PresenceType    `json:"presence"`
	Identity     domain.Identity `json:"identity,omitempty"`
}

type ChatMessage struct {
	Type   string          `json:"type"`
	Room   domain.RoomName `json:"room"`
	Author domain.Identity `json:"author"`
	Time   time.Time       `json:"time"`
	Text   string          `json:"text,omitempty"`
	File   *domain.FileRef `json:"file,omitempty"`
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"memberCount"`
}

// AdminState is the admin snapshot.
type AdminState struct {
	Rooms         []RoomInfo        `json:"rooms"`
	Users         []domain.Identity `json:"users"`
	ArchivedCount int               `json:"archivedCount"`
}

type AdminStateEvent struct {
	Type  string     `json:"type"`
	State AdminState `json:"state"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

func NewErrorEvent(request string, err error) ErrorEvent {
	return ErrorEvent{
		Type:    EventError,
		Code:    domain.ErrorCode(err),
		Message: domain.PublicMessage(err),
		Request: request,
	}
}
