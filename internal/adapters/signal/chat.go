package signal

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Chat/internal/domain"
)

type filePayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

func (ctl *SignalWSController) handleChat(ctx context.Context, st *connState, data []byte) error {
	type chatPayload struct {
		Type string       `json:"type"`
		Room string       `json:"room"`
		Text string       `json:"text,omitempty"`
		File *filePayload `json:"file,omitempty"`
	}
	var p chatPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.Room == "" {
		return fmt.Errorf("%w: room required", domain.ErrValidation)
	}
	if id, ok := ctl.Orch.Registry.Identity(st.sid); ok && ctl.Limiter != nil && !ctl.Limiter.Allow(id) {
		return fmt.Errorf("%w: slow down", domain.ErrValidation)
	}

	var file *domain.FileRef
	if p.File != nil {
		ref, err := p.File.toRef()
		if err != nil {
			return err
		}
		file = ref
	}
	return ctl.Orch.SendMessage(ctx, st.sid, domain.RoomName(p.Room), p.Text, file)
}

// toRef only accepts references to files this server stored.
func (f *filePayload) toRef() (*domain.FileRef, error) {
	id, ok := strings.CutPrefix(f.URL, domain.FileURLPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return nil, fmt.Errorf("%w: unknown file reference", domain.ErrValidation)
	}
	if f.Size < 0 {
		return nil, fmt.Errorf("%w: bad file size", domain.ErrValidation)
	}
	return &domain.FileRef{ID: id, Name: f.Name, URL: f.URL, Size: f.Size}, nil
}
