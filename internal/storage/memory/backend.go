package memory

import (
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/storage/password"
)

// NewBackend returns a process-local backend; nothing survives a restart.
func NewBackend(hasher *password.Hasher, historyLimit int) core.Backend {
	return core.Backend{
		Rooms:    NewRoomStore(historyLimit),
		Archives: NewArchiveStore(),
		Auth:     NewUserStore(hasher),
		Blobs:    NewBlobStore(),
	}
}
