package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// ArchiveStore keeps archive entries in append order.
type ArchiveStore struct {
	mu      sync.RWMutex
	entries []*domain.ArchiveEntry
}

var _ core.ArchiveStore = (*ArchiveStore)(nil)

func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{}
}

func (s *ArchiveStore) Append(_ context.Context, entry *domain.ArchiveEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil archive entry", domain.ErrValidation)
	}
	cp := copyEntry(entry)
	s.mu.Lock()
	s.entries = append(s.entries, cp)
	s.mu.Unlock()
	return nil
}

func (s *ArchiveStore) Latest(_ context.Context, name domain.RoomName) (*domain.ArchiveEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].RoomName == name {
			return copyEntry(s.entries[i]), nil
		}
	}
	return nil, fmt.Errorf("archive %q: %w", name, domain.ErrNotFound)
}

func (s *ArchiveStore) List(_ context.Context) ([]domain.ArchiveSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ArchiveSummary, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i].Summary())
	}
	return out, nil
}

func (s *ArchiveStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func copyEntry(e *domain.ArchiveEntry) *domain.ArchiveEntry {
	cp := *e
	cp.MembersAtDelete = append([]domain.Identity{}, e.MembersAtDelete...)
	cp.History = append([]domain.Message{}, e.History...)
	return &cp
}
