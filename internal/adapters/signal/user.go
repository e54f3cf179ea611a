package signal

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleAuth attaches an identity to the connection. A logged-in cookie
// session wins; otherwise a password is checked, and a bare identity is
// accepted only when anonymous auth is enabled.
func (ctl *SignalWSController) handleAuth(ctx context.Context, st *connState, data []byte) error {
	type authPayload struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
		Password string `json:"password,omitempty"`
	}
	var p authPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	id, err := ctl.resolveIdentity(ctx, st, domain.Identity(p.Identity), p.Password)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(st.sid)).Str("claimed", p.Identity).Msg("auth rejected")
		return err
	}
	if err := ctl.Orch.Authenticate(ctx, st.sid, id); err != nil {
		return err
	}
	ctl.Orch.SendTo(st.sid, struct {
		Type     string          `json:"type"`
		Identity domain.Identity `json:"identity"`
	}{core.EventAuthOK, id})
	return nil
}

func (ctl *SignalWSController) resolveIdentity(ctx context.Context, st *connState, claimed domain.Identity, pw string) (domain.Identity, error) {
	admin := ctl.Orch.Registry.Admin()
	switch {
	case st.sessionUser != "":
		if claimed != "" && claimed != st.sessionUser {
			return "", fmt.Errorf("%w: identity does not match login", domain.ErrUnauthorized)
		}
		return st.sessionUser, nil
	case claimed == "":
		return "", fmt.Errorf("%w: identity required", domain.ErrValidation)
	case claimed == admin:
		if ctl.opts.AdminPassword == "" {
			return admin, nil
		}
		if subtle.ConstantTimeCompare([]byte(pw), []byte(ctl.opts.AdminPassword)) != 1 {
			return "", fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
		}
		return admin, nil
	case pw != "":
		if err := ctl.Auth.Authenticate(ctx, domain.Credentials{ID: claimed, Password: pw}); err != nil {
			return "", err
		}
		return claimed, nil
	case ctl.opts.AllowAnonAuth:
		return claimed, nil
	default:
		return "", fmt.Errorf("%w: login required", domain.ErrUnauthorized)
	}
}

func (ctl *SignalWSController) handleWhoAmI(st *connState) {
	id, _ := ctl.Orch.Registry.Identity(st.sid)
	room, _ := ctl.Orch.Registry.RoomOf(st.sid)
	resp := struct {
		Type     string          `json:"type"`
		Identity domain.Identity `json:"identity,omitempty"`
		Room     domain.RoomName `json:"room,omitempty"`
	}{
		Type:     core.EventWhoAmI,
		Identity: id,
		Room:     room,
	}
	ctl.Orch.SendTo(st.sid, resp)
}
