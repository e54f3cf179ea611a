package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// SendMessage appends a message to the room history and delivers it to
// every member, the sender included. The server is the only writer of
// the displayed log.
func (o *Orchestrator) SendMessage(ctx context.Context, sid core.SessionID, name domain.RoomName, text string, file *domain.FileRef) error {
	id, ok := o.Registry.Identity(sid)
	if !ok {
		return fmt.Errorf("%w: authenticate first", domain.ErrUnauthorized)
	}
	msg := domain.Message{Author: id, Time: time.Now().UTC(), Text: text, File: file}
	if err := msg.Validate(); err != nil {
		return err
	}

	unlock := o.locks.Lock(name)
	defer unlock()

	if !o.Members.Has(name, sid) {
		return fmt.Errorf("%w: not a member of %s", domain.ErrStateInconsistency, name)
	}
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	if err := o.Rooms.AppendMessage(sctx, name, msg); err != nil {
		return err
	}
	o.broadcastRoom(name, "", core.ChatMessage{
		Type:   core.EventChatMessage,
		Room:   name,
		Author: msg.Author,
		Time:   msg.Time,
		Text:   msg.Text,
		File:   msg.File,
	})
	log.Debug().Str("module", "app.orch").Str("user", string(id)).Str("room", string(name)).Msg("message sent")
	return nil
}
