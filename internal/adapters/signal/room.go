package signal

import (
	"context"
	"fmt"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(ctx context.Context, st *connState, data []byte) error {
	type joinPayload struct {
		Type     string `json:"type"`
		Room     string `json:"room"`
		Identity string `json:"identity,omitempty"`
		Password string `json:"password,omitempty"`
	}
	var p joinPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if _, ok := ctl.Orch.Registry.Identity(st.sid); !ok && (p.Identity != "" || st.sessionUser != "") {
		// A join may carry the identity instead of a prior auth event.
		id, err := ctl.resolveIdentity(ctx, st, domain.Identity(p.Identity), "")
		if err != nil {
			return err
		}
		if err := ctl.Orch.Authenticate(ctx, st.sid, id); err != nil {
			return err
		}
	}
	count, err := ctl.Orch.Join(ctx, st.sid, domain.RoomName(p.Room), p.Password)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(st.sid)).Str("room", p.Room).Int("members", count).Msg("join")
	return nil
}

// handleLeave leaves the named room, or the current one when no name is
// given. The connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, st *connState, data []byte) error {
	type leavePayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p leavePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	room := domain.RoomName(p.Room)
	if room == "" {
		current, ok := ctl.Orch.Registry.RoomOf(st.sid)
		if !ok {
			return fmt.Errorf("%w: not in a room", domain.ErrStateInconsistency)
		}
		room = current
	}
	log.Info().Str("module", "signal").Str("sid", string(st.sid)).Str("room", string(room)).Msg("leave")
	return ctl.Orch.Leave(ctx, st.sid, room)
}
