package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Membership tracks which sessions are joined to which room.
// Counts are per session: two sessions of one identity count twice.
type Membership struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]map[core.SessionID]domain.Identity
}

func NewMembership() *Membership {
	return &Membership{rooms: make(map[domain.RoomName]map[core.SessionID]domain.Identity)}
}

// Add registers sid in room and returns the new count.
// added is false when sid was already a member.
func (m *Membership) Add(room domain.RoomName, sid core.SessionID, id domain.Identity) (count int, added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.rooms[room]
	if !ok {
		set = make(map[core.SessionID]domain.Identity)
		m.rooms[room] = set
	}
	if _, ok := set[sid]; ok {
		return len(set), false
	}
	set[sid] = id
	return len(set), true
}

// Remove drops sid from room and returns the remaining count.
func (m *Membership) Remove(room domain.RoomName, sid core.SessionID) (count int, removed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.rooms[room]
	if !ok {
		return 0, false
	}
	if _, ok := set[sid]; !ok {
		return len(set), false
	}
	delete(set, sid)
	n := len(set)
	if n == 0 {
		delete(m.rooms, room)
	}
	return n, true
}

func (m *Membership) Has(room domain.RoomName, sid core.SessionID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[room][sid]
	return ok
}

func (m *Membership) Count(room domain.RoomName) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// Sessions returns the member sessions of room.
func (m *Membership) Sessions(room domain.RoomName) []core.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.rooms[room]
	out := make([]core.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

// Identities returns the distinct identities joined to room, sorted.
func (m *Membership) Identities(room domain.RoomName) []domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[domain.Identity]struct{})
	out := make([]domain.Identity, 0, len(m.rooms[room]))
	for _, id := range m.rooms[room] {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Membership) Drop(room domain.RoomName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, room)
}
