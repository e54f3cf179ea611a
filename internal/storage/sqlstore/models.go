package sqlstore

import (
	"time"

	"github.com/dkeye/Chat/internal/domain"
	"gorm.io/gorm"
)

type roomModel struct {
	ID           uint           `gorm:"primaryKey"`
	Name         string         `gorm:"size:64;not null;index"`
	Password     string         `gorm:"size:128"`
	CreatedAt    time.Time      `gorm:"not null"`
	MessageCount int            `gorm:"not null;default:0"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (roomModel) TableName() string { return "rooms" }

func (m *roomModel) toDomain() *domain.Room {
	return &domain.Room{
		Name:         domain.RoomName(m.Name),
		Password:     m.Password,
		CreatedAt:    m.CreatedAt,
		MessageCount: m.MessageCount,
	}
}

type messageModel struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"not null;index"`
	Author    string    `gorm:"size:36;not null"`
	Text      string    `gorm:"type:text"`
	FileID    string    `gorm:"size:36"`
	FileName  string    `gorm:"size:255"`
	FileURL   string    `gorm:"size:255"`
	FileSize  int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
}

func (messageModel) TableName() string { return "messages" }

func newMessageModel(roomID uint, msg domain.Message) *messageModel {
	m := &messageModel{
		RoomID:    roomID,
		Author:    string(msg.Author),
		Text:      msg.Text,
		CreatedAt: msg.Time,
	}
	if msg.File != nil {
		m.FileID = msg.File.ID
		m.FileName = msg.File.Name
		m.FileURL = msg.File.URL
		m.FileSize = msg.File.Size
	}
	return m
}

func (m *messageModel) toDomain() domain.Message {
	msg := domain.Message{
		Author: domain.Identity(m.Author),
		Time:   m.CreatedAt,
		Text:   m.Text,
	}
	if m.FileURL != "" {
		msg.File = &domain.FileRef{ID: m.FileID, Name: m.FileName, URL: m.FileURL, Size: m.FileSize}
	}
	return msg
}

type archiveModel struct {
	ID              uint              `gorm:"primaryKey"`
	RoomName        string            `gorm:"size:64;not null;index"`
	Password        string            `gorm:"size:128"`
	RoomCreatedAt   time.Time         `gorm:"not null"`
	RemovedAt       time.Time         `gorm:"not null"`
	Reason          string            `gorm:"size:32;not null"`
	MembersAtDelete []domain.Identity `gorm:"serializer:json"`
	MessageCount    int               `gorm:"not null"`
	History         []domain.Message  `gorm:"serializer:json"`
}

func (archiveModel) TableName() string { return "room_archives" }

func (m *archiveModel) toDomain() *domain.ArchiveEntry {
	members := m.MembersAtDelete
	if members == nil {
		members = []domain.Identity{}
	}
	history := m.History
	if history == nil {
		history = []domain.Message{}
	}
	return &domain.ArchiveEntry{
		RoomName:        domain.RoomName(m.RoomName),
		Password:        m.Password,
		CreatedAt:       m.RoomCreatedAt,
		DeletedAt:       m.RemovedAt,
		Reason:          domain.DeleteReason(m.Reason),
		MembersAtDelete: members,
		MessageCount:    m.MessageCount,
		History:         history,
	}
}

type userModel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Hash      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

type uploadModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	OriginalName string    `gorm:"size:255;not null"`
	Size         int64     `gorm:"not null"`
	Mime         string    `gorm:"size:127"`
	Blob         []byte    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (uploadModel) TableName() string { return "uploads" }
