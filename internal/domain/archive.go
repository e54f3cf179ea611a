package domain

import "time"

type DeleteReason string

const (
	ReasonMemberLeft           DeleteReason = "member_left"
	ReasonDisconnectLastMember DeleteReason = "disconnect_last_member"
)

// ArchiveEntry is the terminal snapshot of a deleted room.
type ArchiveEntry struct {
	RoomName        RoomName     `json:"name"`
	Password        string       `json:"-"`
	CreatedAt       time.Time    `json:"createdAt"`
	DeletedAt       time.Time    `json:"deletedAt"`
	Reason          DeleteReason `json:"reason"`
	MembersAtDelete []Identity   `json:"membersAtDelete"`
	MessageCount    int          `json:"messageCount"`
	History         []Message    `json:"history"`
}

// ArchiveSummary is the list view of an ArchiveEntry.
type ArchiveSummary struct {
	RoomName        RoomName     `json:"name"`
	HasPassword     bool         `json:"hasPassword"`
	CreatedAt       time.Time    `json:"createdAt"`
	DeletedAt       time.Time    `json:"deletedAt"`
	Reason          DeleteReason `json:"reason"`
	MembersAtDelete []Identity   `json:"membersAtDelete"`
	MessageCount    int          `json:"messageCount"`
}

func (e *ArchiveEntry) Summary() ArchiveSummary {
	return ArchiveSummary{
		RoomName:        e.RoomName,
		HasPassword:     e.Password != "",
		CreatedAt:       e.CreatedAt,
		DeletedAt:       e.DeletedAt,
		Reason:          e.Reason,
		MembersAtDelete: e.MembersAtDelete,
		MessageCount:    e.MessageCount,
	}
}
