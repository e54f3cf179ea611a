package app

import (
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose send buffer rejected a frame.
type Policy interface {
	OnBackPressure(sid core.SessionID, err error) BackpressureAction
}

// SimplePolicy kicks on the first overflow.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.SessionID, error) BackpressureAction {
	return KickMember
}

// TolerantPolicy drops frames for a session until it overflows more than
// Tolerance times within Window, then kicks it.
type TolerantPolicy struct {
	Tolerance int
	Window    time.Duration

	mu      sync.Mutex
	strikes map[core.SessionID][]time.Time
	now     func() time.Time
}

func NewTolerantPolicy(tolerance int, window time.Duration) *TolerantPolicy {
	return &TolerantPolicy{
		Tolerance: tolerance,
		Window:    window,
		strikes:   make(map[core.SessionID][]time.Time),
		now:       time.Now,
	}
}

func (p *TolerantPolicy) OnBackPressure(sid core.SessionID, _ error) BackpressureAction {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	cutoff := now.Add(-p.Window)
	for id, ts := range p.strikes {
		if len(ts) > 0 && !ts[len(ts)-1].After(cutoff) {
			delete(p.strikes, id)
		}
	}

	recent := p.strikes[sid][:0]
	for _, t := range p.strikes[sid] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	if len(recent) > p.Tolerance {
		delete(p.strikes, sid)
		return KickMember
	}
	p.strikes[sid] = recent
	return DropFrame
}
