package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// CreateRoom creates a live room and announces it with a member count of 0.
func (o *Orchestrator) CreateRoom(ctx context.Context, name domain.RoomName, password string) (*domain.Room, error) {
	if err := name.Validate(); err != nil {
		return nil, err
	}
	unlock := o.locks.Lock(name)
	sctx, cancel := o.storeCtx(ctx)
	room, err := o.Rooms.Create(sctx, name, password)
	cancel()
	if err != nil {
		unlock()
		return nil, err
	}
	o.announceCreated(name)
	unlock()

	log.Info().Str("module", "app.orch").Str("room", string(name)).Bool("password", password != "").Msg("room created")
	o.BroadcastAdminState(ctx)
	return room, nil
}

func (o *Orchestrator) announceCreated(name domain.RoomName) {
	o.broadcastAll(core.PresenceUpdate{
		Type:         core.EventPresenceUpdate,
		Room:         name,
		PresenceType: core.PresenceRoomCreated,
	})
}

// Join adds the session to name, creating the room when absent. A session
// already in another room leaves it only after the target accepts its
// password. Joining the same room twice does not count twice.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, name domain.RoomName, password string) (int, error) {
	if err := name.Validate(); err != nil {
		return 0, err
	}
	id, ok := o.Registry.Identity(sid)
	if !ok {
		return 0, fmt.Errorf("%w: authenticate first", domain.ErrUnauthorized)
	}
	if current, ok := o.Registry.RoomOf(sid); ok && current != name {
		if err := o.checkTarget(ctx, name, password); err != nil {
			return 0, err
		}
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(current)).Msg("leaving previous room")
		o.leave(ctx, sid, id, current, domain.ReasonMemberLeft)
	}

	unlock := o.locks.Lock(name)
	count, err := o.joinLocked(ctx, sid, id, name, password)
	unlock()
	if err != nil {
		return 0, err
	}
	o.BroadcastAdminState(ctx)
	return count, nil
}

// checkTarget rejects a room switch that joinLocked would refuse, so the
// session keeps its current room.
func (o *Orchestrator) checkTarget(ctx context.Context, name domain.RoomName, password string) error {
	unlock := o.locks.Lock(name)
	defer unlock()
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	room, err := o.Rooms.Get(sctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return room.CheckPassword(password)
}

func (o *Orchestrator) joinLocked(ctx context.Context, sid core.SessionID, id domain.Identity, name domain.RoomName, password string) (int, error) {
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	room, created, err := o.Rooms.GetOrCreate(sctx, name)
	if err != nil {
		return 0, err
	}
	if err := room.CheckPassword(password); err != nil {
		return 0, err
	}
	if created {
		log.Info().Str("module", "app.orch").Str("room", string(name)).Msg("room auto-created on join")
		o.announceCreated(name)
	}
	if !o.Registry.UpdateRoom(sid, name) {
		if created && o.Members.Count(name) == 0 {
			o.dropUnused(sctx, name)
		}
		return 0, fmt.Errorf("%w: session %s disconnected", domain.ErrStateInconsistency, sid)
	}
	// The identity cannot change once the session has a room.
	if cur, ok := o.Registry.Identity(sid); ok {
		id = cur
	}

	count, added := o.Members.Add(name, sid, id)
	history := room.History
	if history == nil {
		history = []domain.Message{}
	}
	o.SendTo(sid, core.RoomJoined{
		Type:        core.EventRoomJoined,
		Room:        name,
		MemberCount: count,
		History:     history,
	})
	if !added {
		return count, nil
	}
	o.broadcastRoom(name, sid, core.PresenceUpdate{
		Type:         core.EventPresenceUpdate,
		Room:         name,
		MemberCount:  count,
		PresenceType: core.PresenceJoin,
		Identity:     id,
	})
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("user", string(id)).Str("room", string(name)).Int("members", count).Msg("joined")
	return count, nil
}

// Leave removes the session from name. Leaving a room the session is not
// in is reported as ErrStateInconsistency and changes nothing.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID, name domain.RoomName) error {
	id, _ := o.Registry.Identity(sid)
	if !o.leave(ctx, sid, id, name, domain.ReasonMemberLeft) {
		return fmt.Errorf("%w: not a member of %s", domain.ErrStateInconsistency, name)
	}
	o.SendTo(sid, core.RoomLeft{Type: core.EventRoomLeft, Room: name, MemberCount: o.Members.Count(name)})
	o.BroadcastAdminState(ctx)
	return nil
}

// leave is shared by explicit leave, room switch and disconnect. The
// membership check under the room lock makes sure a session is removed,
// and a room archived, at most once.
func (o *Orchestrator) leave(ctx context.Context, sid core.SessionID, id domain.Identity, name domain.RoomName, reason domain.DeleteReason) bool {
	unlock := o.locks.Lock(name)
	defer unlock()

	if !o.Members.Has(name, sid) {
		return false
	}
	lastMembers := o.Members.Identities(name)
	count, _ := o.Members.Remove(name, sid)
	o.Registry.RemoveRoom(sid, name)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("user", string(id)).Str("room", string(name)).Int("members", count).Msg("left")

	if count == 0 {
		if err := o.archiveLocked(ctx, name, reason, lastMembers); err != nil {
			log.Error().Err(err).Str("module", "app.orch").Str("room", string(name)).Msg("archive failed")
		}
		return true
	}
	o.broadcastRoom(name, "", core.PresenceUpdate{
		Type:         core.EventPresenceUpdate,
		Room:         name,
		MemberCount:  count,
		PresenceType: core.PresenceLeave,
		Identity:     id,
	})
	return true
}

// archiveLocked snapshots an emptied room into the archive and removes it
// from the live store. A room that is already gone is left alone.
func (o *Orchestrator) archiveLocked(ctx context.Context, name domain.RoomName, reason domain.DeleteReason, lastMembers []domain.Identity) error {
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	room, err := o.Rooms.Get(sctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	history := room.History
	if len(history) > domain.HistoryLimit {
		history = history[len(history)-domain.HistoryLimit:]
	}
	if history == nil {
		history = []domain.Message{}
	}
	if lastMembers == nil {
		lastMembers = []domain.Identity{}
	}
	entry := &domain.ArchiveEntry{
		RoomName:        room.Name,
		Password:        room.Password,
		CreatedAt:       room.CreatedAt,
		DeletedAt:       time.Now(),
		Reason:          reason,
		MembersAtDelete: lastMembers,
		MessageCount:    room.MessageCount,
		History:         history,
	}
	if err := o.Archives.Append(sctx, entry); err != nil {
		return err
	}
	if err := o.Rooms.Remove(sctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	o.Members.Drop(name)
	log.Info().Str("module", "app.orch").Str("room", string(name)).Str("reason", string(reason)).Int("messages", entry.MessageCount).Msg("room archived")

	o.broadcastAll(core.PresenceUpdate{
		Type:         core.EventPresenceUpdate,
		Room:         name,
		PresenceType: core.PresenceRoomDeleted,
	})
	return nil
}

// dropUnused removes a room created for a session that disconnected before
// it could join. The room never had members, so it is not archived.
func (o *Orchestrator) dropUnused(ctx context.Context, name domain.RoomName) {
	if err := o.Rooms.Remove(ctx, name); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(name)).Msg("drop unused room")
		return
	}
	o.broadcastAll(core.PresenceUpdate{
		Type:         core.EventPresenceUpdate,
		Room:         name,
		PresenceType: core.PresenceRoomDeleted,
	})
}
