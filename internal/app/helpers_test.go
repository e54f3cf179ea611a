package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/storage/memory"
	"github.com/dkeye/Chat/internal/storage/password"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errFull = errors.New("buffer full")

// fakeSignal records every frame it is asked to send.
type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errFull
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSignal) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// events decodes the recorded frames of the given type.
func (f *fakeSignal) events(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSignal) presence(t *testing.T, kind core.PresenceType) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range f.events(t, core.EventPresenceUpdate) {
		if m["presence"] == string(kind) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSignal) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

type testEnv struct {
	orch    *Orchestrator
	backend core.Backend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := memory.NewBackend(password.NewHasherWithCost(bcrypt.MinCost), domain.HistoryLimit)
	return newTestEnvWith(backend)
}

func newTestEnvWith(backend core.Backend) *testEnv {
	reg := NewRegistry(domain.DefaultAdmin)
	return &testEnv{
		orch:    NewOrchestrator(reg, backend, SimplePolicy{}, 0),
		backend: backend,
	}
}

// connect binds a new session and authenticates it as id.
func (e *testEnv) connect(t *testing.T, sid core.SessionID, id domain.Identity) *fakeSignal {
	t.Helper()
	sig := &fakeSignal{}
	e.orch.Connect(sid, sig, func() {})
	if id != "" {
		require.NoError(t, e.orch.Authenticate(context.Background(), sid, id))
	}
	return sig
}
