package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, st *connState) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(st.sid)).Msg("readPump closing")
		cancel()
		st.conn.Close()
		ctl.Orch.OnDisconnect(context.WithoutCancel(ctx), st.sid)
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = st.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	st.conn.conn.SetPongHandler(func(string) error {
		return st.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(st.sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := st.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(st.sid)).Msg("readPump read error")
				}
				return
			}
			_ = st.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, st, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, st *connState, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(st.sid)).Msg("bad json")
		ctl.reply(st, "", errBadPayload)
		return
	}

	var err error
	switch env.Type {
	case core.EventAuth:
		err = ctl.handleAuth(ctx, st, data)
	case core.EventRoomJoin:
		err = ctl.handleJoin(ctx, st, data)
	case core.EventRoomLeave:
		err = ctl.handleLeave(ctx, st, data)
	case core.EventChatMessage:
		err = ctl.handleChat(ctx, st, data)
	case core.EventAdminGetState:
		err = ctl.Orch.RequestAdminState(ctx, st.sid)
	case core.EventWhoAmI:
		ctl.handleWhoAmI(st)
	case core.EventPing:
		ctl.handlePing(st)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		err = errUnknownType
	}
	ctl.reply(st, env.Type, err)
}

// reply reports a failed command back to its sender. State machine
// violations are dropped silently.
func (ctl *SignalWSController) reply(st *connState, request string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrStateInconsistency) {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(st.sid)).Str("request", request).Msg("ignored")
		return
	}
	ctl.Orch.SendError(st.sid, request, err)
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errBadPayload
	}
	return nil
}
