// Package memory holds process-local implementations of the storage backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type roomRecord struct {
	mu           sync.Mutex
	name         domain.RoomName
	password     string
	createdAt    time.Time
	history      []domain.Message
	messageCount int
	seq          uint64
}

func (r *roomRecord) snapshot(withHistory bool) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := &domain.Room{
		Name:         r.name,
		Password:     r.password,
		CreatedAt:    r.createdAt,
		MessageCount: r.messageCount,
	}
	if withHistory {
		room.History = make([]domain.Message, len(r.history))
		copy(room.History, r.history)
	}
	return room
}

// RoomStore is a threadsafe in-memory core.RoomStore.
type RoomStore struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomName]*roomRecord
	limit   int
	nextSeq uint64
	now     func() time.Time
}

var _ core.RoomStore = (*RoomStore)(nil)

func NewRoomStore(historyLimit int) *RoomStore {
	if historyLimit <= 0 || historyLimit > domain.HistoryLimit {
		historyLimit = domain.HistoryLimit
	}
	return &RoomStore{
		rooms: make(map[domain.RoomName]*roomRecord),
		limit: historyLimit,
		now:   time.Now,
	}
}

func (s *RoomStore) newRecord(name domain.RoomName, password string) *roomRecord {
	s.nextSeq++
	return &roomRecord{name: name, password: password, createdAt: s.now(), seq: s.nextSeq}
}

func (s *RoomStore) Create(_ context.Context, name domain.RoomName, password string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; ok {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrConflict)
	}
	rec := s.newRecord(name, password)
	s.rooms[name] = rec
	return rec.snapshot(true), nil
}

func (s *RoomStore) GetOrCreate(_ context.Context, name domain.RoomName) (*domain.Room, bool, error) {
	s.mu.RLock()
	rec, ok := s.rooms[name]
	s.mu.RUnlock()
	if ok {
		return rec.snapshot(true), false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok = s.rooms[name]; ok {
		return rec.snapshot(true), false, nil
	}
	rec = s.newRecord(name, "")
	s.rooms[name] = rec
	return rec.snapshot(true), true, nil
}

func (s *RoomStore) Get(_ context.Context, name domain.RoomName) (*domain.Room, error) {
	s.mu.RLock()
	rec, ok := s.rooms[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	return rec.snapshot(true), nil
}

func (s *RoomStore) List(_ context.Context) ([]*domain.Room, error) {
	s.mu.RLock()
	recs := make([]*roomRecord, 0, len(s.rooms))
	for _, r := range s.rooms {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })
	out := make([]*domain.Room, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.snapshot(false))
	}
	return out, nil
}

func (s *RoomStore) AppendMessage(_ context.Context, name domain.RoomName, msg domain.Message) error {
	s.mu.RLock()
	rec, ok := s.rooms[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.history = domain.AppendCapped(rec.history, msg, s.limit)
	rec.messageCount++
	return nil
}

func (s *RoomStore) Remove(_ context.Context, name domain.RoomName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; !ok {
		return fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	delete(s.rooms, name)
	return nil
}
