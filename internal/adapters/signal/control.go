package signal

import (
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

var (
	errBadPayload  = fmt.Errorf("%w: bad payload", domain.ErrValidation)
	errUnknownType = fmt.Errorf("%w: unknown event type", domain.ErrValidation)
)

func (ctl *SignalWSController) handlePing(st *connState) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: core.EventPong,
	}
	ctl.Orch.SendTo(st.sid, resp)
}
