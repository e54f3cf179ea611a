// Package storetest holds the behaviour every storage backend must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Factory returns a fresh, empty backend with the given history limit.
type Factory func(t *testing.T, historyLimit int) core.Backend

func Run(t *testing.T, newBackend Factory) {
	t.Run("RoomLifecycle", func(t *testing.T) { testRoomLifecycle(t, newBackend(t, domain.HistoryLimit)) })
	t.Run("HistoryCap", func(t *testing.T) { testHistoryCap(t, newBackend(t, 5)) })
	t.Run("HistoryLimitClamped", func(t *testing.T) { testHistoryLimitClamped(t, newBackend(t, domain.HistoryLimit+300)) })
	t.Run("ConcurrentAppend", func(t *testing.T) { testConcurrentAppend(t, newBackend(t, domain.HistoryLimit)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListNewestFirst(t, newBackend(t, domain.HistoryLimit)) })
	t.Run("Archives", func(t *testing.T) { testArchives(t, newBackend(t, domain.HistoryLimit)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newBackend(t, domain.HistoryLimit)) })
	t.Run("Blobs", func(t *testing.T) { testBlobs(t, newBackend(t, domain.HistoryLimit)) })
}

func msg(author domain.Identity, text string) domain.Message {
	return domain.Message{Author: author, Time: time.Now().UTC(), Text: text}
}

func testRoomLifecycle(t *testing.T, b core.Backend) {
	ctx := context.Background()
	rooms := b.Rooms

	room, err := rooms.Create(ctx, "R1", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomName("R1"), room.Name)
	assert.True(t, room.HasPassword())

	_, err = rooms.Create(ctx, "R1", "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, created, err := rooms.GetOrCreate(ctx, "R1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "pw", got.Password)

	_, created, err = rooms.GetOrCreate(ctx, "R2")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, rooms.AppendMessage(ctx, "R1", msg("alice", "hi")))
	got, err = rooms.Get(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, "hi", got.History[0].Text)
	assert.Equal(t, domain.Identity("alice"), got.History[0].Author)
	assert.Equal(t, 1, got.MessageCount)

	require.NoError(t, rooms.Remove(ctx, "R1"))
	_, err = rooms.Get(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, rooms.Remove(ctx, "R1"), domain.ErrNotFound)
	assert.ErrorIs(t, rooms.AppendMessage(ctx, "R1", msg("alice", "late")), domain.ErrNotFound)

	fresh, created, err := rooms.GetOrCreate(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, fresh.History)
	assert.Zero(t, fresh.MessageCount)
	assert.False(t, fresh.HasPassword())
}

func testHistoryCap(t *testing.T, b core.Backend) {
	ctx := context.Background()
	_, err := b.Rooms.Create(ctx, "R", "")
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, b.Rooms.AppendMessage(ctx, "R", msg("alice", fmt.Sprintf("m%d", i))))
	}
	got, err := b.Rooms.Get(ctx, "R")
	require.NoError(t, err)
	require.Len(t, got.History, 5)
	for i, m := range got.History {
		assert.Equal(t, fmt.Sprintf("m%d", i+1), m.Text)
	}
	assert.Equal(t, 6, got.MessageCount)
}

func testHistoryLimitClamped(t *testing.T, b core.Backend) {
	ctx := context.Background()
	_, err := b.Rooms.Create(ctx, "R", "")
	require.NoError(t, err)

	total := domain.HistoryLimit + 5
	for i := 0; i < total; i++ {
		require.NoError(t, b.Rooms.AppendMessage(ctx, "R", msg("alice", fmt.Sprintf("m%d", i))))
	}
	got, err := b.Rooms.Get(ctx, "R")
	require.NoError(t, err)
	require.Len(t, got.History, domain.HistoryLimit)
	assert.Equal(t, "m5", got.History[0].Text)
	assert.Equal(t, total, got.MessageCount)
}

func testConcurrentAppend(t *testing.T, b core.Backend) {
	ctx := context.Background()
	_, err := b.Rooms.Create(ctx, "R", "")
	require.NoError(t, err)

	const writers, perWriter = 8, 10
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		author := domain.Identity(fmt.Sprintf("user%d", w))
		g.Go(func() error {
			for i := 0; i < perWriter; i++ {
				if err := b.Rooms.AppendMessage(ctx, "R", msg(author, fmt.Sprintf("%s-%d", author, i))); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got, err := b.Rooms.Get(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, got.MessageCount)
	require.Len(t, got.History, writers*perWriter)

	seen := make(map[string]bool, len(got.History))
	for _, m := range got.History {
		seen[m.Text] = true
	}
	assert.Len(t, seen, writers*perWriter)
}

func testListNewestFirst(t *testing.T, b core.Backend) {
	ctx := context.Background()
	for _, name := range []domain.RoomName{"a", "b", "c"} {
		_, err := b.Rooms.Create(ctx, name, "")
		require.NoError(t, err)
	}
	require.NoError(t, b.Rooms.Remove(ctx, "b"))

	list, err := b.Rooms.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.RoomName("c"), list[0].Name)
	assert.Equal(t, domain.RoomName("a"), list[1].Name)
}

func testArchives(t *testing.T, b core.Backend) {
	ctx := context.Background()
	archives := b.Archives

	n, err := archives.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = archives.Latest(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := &domain.ArchiveEntry{
		RoomName:        "R1",
		Password:        "pw",
		CreatedAt:       time.Now().Add(-time.Hour).UTC(),
		DeletedAt:       time.Now().UTC(),
		Reason:          domain.ReasonMemberLeft,
		MembersAtDelete: []domain.Identity{"alice"},
		MessageCount:    2,
		History:         []domain.Message{msg("alice", "one"), msg("alice", "two")},
	}
	second := &domain.ArchiveEntry{
		RoomName:        "R1",
		DeletedAt:       time.Now().UTC(),
		Reason:          domain.ReasonDisconnectLastMember,
		MembersAtDelete: []domain.Identity{"bob"},
		History:         []domain.Message{},
	}
	require.NoError(t, archives.Append(ctx, first))
	require.NoError(t, archives.Append(ctx, second))

	n, err = archives.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	latest, err := archives.Latest(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonDisconnectLastMember, latest.Reason)
	assert.Equal(t, []domain.Identity{"bob"}, latest.MembersAtDelete)

	list, err := archives.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.ReasonDisconnectLastMember, list[0].Reason)
	assert.False(t, list[0].HasPassword)
	assert.True(t, list[1].HasPassword)
	assert.Equal(t, 2, list[1].MessageCount)
}

func testUsers(t *testing.T, b core.Backend) {
	ctx := context.Background()
	auth := b.Auth

	require.NoError(t, auth.Register(ctx, domain.Credentials{ID: "bob", Password: "hunter2"}))
	assert.ErrorIs(t, auth.Register(ctx, domain.Credentials{ID: "bob", Password: "other"}), domain.ErrConflict)
	assert.ErrorIs(t, auth.Register(ctx, domain.Credentials{ID: "", Password: "x"}), domain.ErrValidation)

	assert.NoError(t, auth.Authenticate(ctx, domain.Credentials{ID: "bob", Password: "hunter2"}))
	assert.ErrorIs(t, auth.Authenticate(ctx, domain.Credentials{ID: "bob", Password: "nope"}), domain.ErrUnauthorized)
	assert.ErrorIs(t, auth.Authenticate(ctx, domain.Credentials{ID: "ghost", Password: "x"}), domain.ErrUnauthorized)

	require.NoError(t, auth.Register(ctx, domain.Credentials{ID: "alice", Password: "pw"}))
	users, err := auth.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{"alice", "bob"}, users)
}

func testBlobs(t *testing.T, b core.Backend) {
	ctx := context.Background()
	blobs := b.Blobs

	ref, err := blobs.Store(ctx, []byte("hello"), "greeting.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "greeting.txt", ref.Name)
	assert.Equal(t, int64(5), ref.Size)
	assert.Equal(t, domain.FileURLPrefix+ref.ID, ref.URL)

	data, blob, err := blobs.Retrieve(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, "text/plain", blob.ContentType)
	assert.Equal(t, ref, blob.Ref)

	_, _, err = blobs.Retrieve(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
