package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultStoreTimeout = 5 * time.Second

// Orchestrator is the presence and messaging coordinator. Every mutation of
// a room's membership or history happens under that room's lock, and the
// events it causes are queued before the lock is released, so observers see
// a room's events in the order they happened.
type Orchestrator struct {
	Registry *Registry
	Members  *Membership
	Rooms    core.RoomStore
	Archives core.ArchiveStore
	Policy   Policy
	Admin    *AdminProjector

	StoreTimeout time.Duration

	locks   roomLocks
	adminMu sync.Mutex
}

func NewOrchestrator(reg *Registry, backend core.Backend, policy Policy, storeTimeout time.Duration) *Orchestrator {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	members := NewMembership()
	return &Orchestrator{
		Registry:     reg,
		Members:      members,
		Rooms:        backend.Rooms,
		Archives:     backend.Archives,
		Policy:       policy,
		Admin:        NewAdminProjector(reg, members, backend.Rooms, backend.Archives),
		StoreTimeout: storeTimeout,
	}
}

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.StoreTimeout)
}

// Connect registers a freshly upgraded session.
func (o *Orchestrator) Connect(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.BindSignal(sid, sig, cancel)
}

// Authenticate attaches id to the session. Credential checks are the
// caller's job; an empty identity is ignored.
func (o *Orchestrator) Authenticate(ctx context.Context, sid core.SessionID, id domain.Identity) error {
	changed, err := o.Registry.AttachIdentity(sid, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("auth ignored")
		return err
	}
	if changed {
		o.BroadcastAdminState(ctx)
	}
	return nil
}

// OnDisconnect is an implicit leave of the session's room followed by
// releasing its identity. Safe to call more than once.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID) {
	snap, ok := o.Registry.Unbind(sid)
	if !ok {
		return
	}
	if snap.RoomName != "" {
		o.leave(ctx, sid, snap.Identity, snap.RoomName, domain.ReasonDisconnectLastMember)
	}
	o.BroadcastAdminState(ctx)
}

// Kick closes a session's transport; its read loop then runs OnDisconnect.
func (o *Orchestrator) Kick(sid core.SessionID) {
	sig, ok := o.Registry.Signal(sid)
	o.Registry.Cancel(sid)
	if ok && sig != nil {
		sig.Close()
	}
}

func (o *Orchestrator) send(sid core.SessionID, sig core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal event")
		return
	}
	o.sendFrame(sid, sig, b)
}

func (o *Orchestrator) sendFrame(sid core.SessionID, sig core.SignalConnection, f core.Frame) {
	if sig == nil {
		return
	}
	err := sig.TrySend(f)
	if err == nil || o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sid, err) {
	case KickMember:
		log.Warn().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("kicking slow session")
		go o.Kick(sid)
	case DropFrame:
		log.Debug().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("dropped frame")
	case MarkSlow, NoAction:
	}
}

// SendTo delivers v to a single session.
func (o *Orchestrator) SendTo(sid core.SessionID, v any) {
	if sig, ok := o.Registry.Signal(sid); ok {
		o.send(sid, sig, v)
	}
}

// SendError reports err to the session that issued request.
func (o *Orchestrator) SendError(sid core.SessionID, request string, err error) {
	if errors.Is(err, domain.ErrBackend) {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Str("request", request).Msg("backend failure")
	}
	o.SendTo(sid, core.NewErrorEvent(request, err))
}

func (o *Orchestrator) broadcastRoom(room domain.RoomName, except core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal event")
		return
	}
	for _, sid := range o.Members.Sessions(room) {
		if sid == except {
			continue
		}
		if sig, ok := o.Registry.Signal(sid); ok {
			o.sendFrame(sid, sig, b)
		}
	}
}

func (o *Orchestrator) broadcastAll(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal event")
		return
	}
	for _, s := range o.Registry.All() {
		o.sendFrame(s.SID, s.Signal, b)
	}
}

// BroadcastAdminState recomputes the admin snapshot and pushes it to every observer.
func (o *Orchestrator) BroadcastAdminState(ctx context.Context) {
	o.adminMu.Lock()
	defer o.adminMu.Unlock()

	observers := o.Registry.Observers()
	if len(observers) == 0 {
		return
	}
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	state, err := o.Admin.Snapshot(sctx)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("admin snapshot")
		return
	}
	b, err := json.Marshal(core.AdminStateEvent{Type: core.EventAdminState, State: state})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal admin state")
		return
	}
	for _, s := range observers {
		o.sendFrame(s.SID, s.Signal, b)
	}
}

// RequestAdminState answers a pull request from an admin session.
func (o *Orchestrator) RequestAdminState(ctx context.Context, sid core.SessionID) error {
	id, _ := o.Registry.Identity(sid)
	if id != o.Registry.Admin() {
		return fmt.Errorf("%w: admin only", domain.ErrUnauthorized)
	}
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	state, err := o.Admin.Snapshot(sctx)
	if err != nil {
		return err
	}
	o.SendTo(sid, core.AdminStateEvent{Type: core.EventAdminState, State: state})
	return nil
}
