package core

import (
	"context"

	"github.com/dkeye/Chat/internal/domain"
)

// RoomStore owns the live room records and their capped history.
// Implementations must serialize appends to the same room.
type RoomStore interface {
	// Create fails with domain.ErrConflict when a live room has this name.
	Create(ctx context.Context, name domain.RoomName, password string) (*domain.Room, error)
	// GetOrCreate returns the live room, creating it with an empty password if needed.
	GetOrCreate(ctx context.Context, name domain.RoomName) (room *domain.Room, created bool, err error)
	// Get returns domain.ErrNotFound for unknown or removed rooms.
	Get(ctx context.Context, name domain.RoomName) (*domain.Room, error)
	// List returns live rooms without history, newest first.
	List(ctx context.Context) ([]*domain.Room, error)
	AppendMessage(ctx context.Context, name domain.RoomName, msg domain.Message) error
	Remove(ctx context.Context, name domain.RoomName) error
}

// ArchiveStore is an append-only log of deleted rooms.
type ArchiveStore interface {
	Append(ctx context.Context, entry *domain.ArchiveEntry) error
	// Latest returns the most recent entry for name.
	Latest(ctx context.Context, name domain.RoomName) (*domain.ArchiveEntry, error)
	// List returns summaries, newest first.
	List(ctx context.Context) ([]domain.ArchiveSummary, error)
	Count(ctx context.Context) (int, error)
}

// Authenticator is the credential backend.
type Authenticator interface {
	// Register fails with domain.ErrConflict for an existing id.
	Register(ctx context.Context, cred domain.Credentials) error
	// Authenticate fails with domain.ErrUnauthorized on a bad id or password.
	Authenticate(ctx context.Context, cred domain.Credentials) error
	// Users lists registered identities; credentials are never exposed.
	Users(ctx context.Context) ([]domain.Identity, error)
}

// BlobStore keeps uploaded files.
type BlobStore interface {
	Store(ctx context.Context, data []byte, originalName, contentType string) (domain.FileRef, error)
	// Retrieve returns domain.ErrNotFound for unknown ids.
	Retrieve(ctx context.Context, id string) ([]byte, *Blob, error)
}

// Blob is the metadata kept alongside stored bytes.
type Blob struct {
	Ref         domain.FileRef
	ContentType string
}

// Backend bundles the pluggable persistence used by the coordinator.
type Backend struct {
	Rooms    RoomStore
	Archives ArchiveStore
	Auth     Authenticator
	Blobs    BlobStore
}
