package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Identity domain.Identity
	RoomName domain.RoomName
	Signal   core.SignalConnection
	Cancel   context.CancelFunc
}

// SessionSnapshot is a read-only copy of a registry entry.
type SessionSnapshot struct {
	SID      core.SessionID
	Identity domain.Identity
	RoomName domain.RoomName
	Signal   core.SignalConnection
}

// Registry maps live sessions to identities and keeps per-identity
// online reference counts.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	online   map[domain.Identity]int
	admin    domain.Identity
}

func NewRegistry(admin domain.Identity) *Registry {
	if admin == "" {
		admin = domain.DefaultAdmin
	}
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		online:   make(map[domain.Identity]int),
		admin:    admin,
	}
}

func (r *Registry) Admin() domain.Identity { return r.admin }

func (r *Registry) BindSignal(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

// AttachIdentity binds id to the session and bumps its online count.
// Re-attaching the same identity is a no-op; switching identities moves the
// count and is refused while the session is in a room.
func (r *Registry) AttachIdentity(sid core.SessionID, id domain.Identity) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: empty identity", domain.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false, fmt.Errorf("%w: session %s is gone", domain.ErrStateInconsistency, sid)
	}
	if e.Identity == id {
		return false, nil
	}
	if e.Identity != "" && e.RoomName != "" {
		return false, fmt.Errorf("%w: leave %s before switching identity", domain.ErrConflict, e.RoomName)
	}
	if e.Identity != "" {
		r.decrement(e.Identity)
	}
	e.Identity = id
	r.online[id]++
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(id)).Int("refs", r.online[id]).Msg("attached identity")
	return true, nil
}

// Unbind removes the session and releases its identity reference.
// Only the first call for a session reports ok.
func (r *Registry) Unbind(sid core.SessionID) (SessionSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return SessionSnapshot{}, false
	}
	delete(r.sessions, sid)
	if e.Identity != "" {
		r.decrement(e.Identity)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(e.Identity)).Msg("unbind session")
	return SessionSnapshot{SID: sid, Identity: e.Identity, RoomName: e.RoomName, Signal: e.Signal}, true
}

func (r *Registry) decrement(id domain.Identity) {
	n := r.online[id] - 1
	if n <= 0 {
		delete(r.online, id)
		log.Info().Str("module", "app.registry").Str("user", string(id)).Msg("identity offline")
		return
	}
	r.online[id] = n
}

func (r *Registry) RefCount(id domain.Identity) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online[id]
}

// OnlineIdentities returns identities with a live session, sorted, admin excluded.
func (r *Registry) OnlineIdentities() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Identity, 0, len(r.online))
	for id, n := range r.online {
		if n > 0 && id != r.admin {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) IsOnline(id domain.Identity) bool {
	return r.RefCount(id) > 0
}

func (r *Registry) Identity(sid core.SessionID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Identity == "" {
		return "", false
	}
	return e.Identity, true
}

func (r *Registry) Signal(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Signal, true
	}
	return nil, false
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.RoomName == "" {
		return "", false
	}
	return e.RoomName, true
}

// UpdateRoom associates the session with a room. It fails once the
// session has been unbound, so a join can never outlive a disconnect.
func (r *Registry) UpdateRoom(sid core.SessionID, room domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomName = room
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return true
}

// RemoveRoom clears the association only if it still points at room.
func (r *Registry) RemoveRoom(sid core.SessionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok && e.RoomName == room {
		e.RoomName = ""
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("removed room association")
	}
}

// Observers returns the sessions authenticated as the admin identity.
func (r *Registry) Observers() []SessionSnapshot {
	return r.filter(func(e *sessionEntry) bool {
		return e.Identity != "" && e.Identity == r.admin
	})
}

func (r *Registry) All() []SessionSnapshot {
	return r.filter(func(*sessionEntry) bool { return true })
}

func (r *Registry) filter(keep func(*sessionEntry) bool) []SessionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSnapshot, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if keep(e) {
			out = append(out, SessionSnapshot{SID: sid, Identity: e.Identity, RoomName: e.RoomName, Signal: e.Signal})
		}
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
