package app

import (
	"context"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"golang.org/x/sync/errgroup"
)

// AdminProjector computes admin snapshots. Nothing is cached: member
// counts come from the live Membership at call time.
type AdminProjector struct {
	registry *Registry
	members  *Membership
	rooms    core.RoomStore
	archives core.ArchiveStore
}

func NewAdminProjector(reg *Registry, members *Membership, rooms core.RoomStore, archives core.ArchiveStore) *AdminProjector {
	return &AdminProjector{registry: reg, members: members, rooms: rooms, archives: archives}
}

func (p *AdminProjector) Snapshot(ctx context.Context) (core.AdminState, error) {
	var (
		rooms    []*domain.Room
		archived int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rooms, err = p.rooms.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		archived, err = p.archives.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.AdminState{}, err
	}

	infos := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, core.RoomInfo{Name: r.Name, MemberCount: p.members.Count(r.Name)})
	}
	return core.AdminState{
		Rooms:         infos,
		Users:         p.registry.OnlineIdentities(),
		ArchivedCount: archived,
	}, nil
}

// RoomInfos lists live rooms with their current member counts.
func (p *AdminProjector) RoomInfos(ctx context.Context) ([]*domain.Room, []int, error) {
	rooms, err := p.rooms.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	counts := make([]int, len(rooms))
	for i, r := range rooms {
		counts[i] = p.members.Count(r.Name)
	}
	return rooms, counts, nil
}
