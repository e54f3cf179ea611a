package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_JoinSendLeave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	_, err := o.CreateRoom(ctx, "R1", "")
	require.NoError(t, err)

	alice := env.connect(t, "s-alice", "alice")
	n, err := o.Join(ctx, "s-alice", "R1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	joined := alice.events(t, core.EventRoomJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, float64(1), joined[0]["memberCount"])
	assert.Equal(t, []any{}, joined[0]["history"])

	require.NoError(t, o.SendMessage(ctx, "s-alice", "R1", "hi", nil))
	chat := alice.events(t, core.EventChatMessage)
	require.Len(t, chat, 1)
	assert.Equal(t, "alice", chat[0]["author"])
	assert.Equal(t, "hi", chat[0]["text"])

	require.NoError(t, o.Leave(ctx, "s-alice", "R1"))
	left := alice.events(t, core.EventRoomLeft)
	require.Len(t, left, 1)
	assert.Equal(t, float64(0), left[0]["memberCount"])

	entry, err := env.backend.Archives.Latest(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonMemberLeft, entry.Reason)
	assert.Equal(t, []domain.Identity{"alice"}, entry.MembersAtDelete)
	assert.Equal(t, 1, entry.MessageCount)

	_, err = env.backend.Rooms.Get(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, alice.presence(t, core.PresenceRoomDeleted), 1)
}

func TestScenario_ChatReachesAllMembers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	alice := env.connect(t, "s1", "alice")
	bob := env.connect(t, "s2", "bob")
	outsider := env.connect(t, "s3", "carol")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	_, err = o.Join(ctx, "s2", "R1", "")
	require.NoError(t, err)

	joins := alice.presence(t, core.PresenceJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, "bob", joins[0]["identity"])
	assert.Equal(t, float64(2), joins[0]["memberCount"])
	assert.Empty(t, bob.presence(t, core.PresenceJoin), "joiner gets room:joined, not its own presence")

	require.NoError(t, o.SendMessage(ctx, "s1", "R1", "hi", nil))
	for _, sig := range []*fakeSignal{alice, bob} {
		chat := sig.events(t, core.EventChatMessage)
		require.Len(t, chat, 1)
		assert.Equal(t, "alice", chat[0]["author"])
		assert.Equal(t, "hi", chat[0]["text"])
	}
	assert.Empty(t, outsider.events(t, core.EventChatMessage))

	require.NoError(t, o.Leave(ctx, "s2", "R1"))
	leaves := alice.presence(t, core.PresenceLeave)
	require.Len(t, leaves, 1)
	assert.Equal(t, float64(1), leaves[0]["memberCount"])
	assert.Equal(t, "bob", leaves[0]["identity"])
}

func TestScenario_WrongPasswordChangesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	_, err := o.CreateRoom(ctx, "vault", "s3cret")
	require.NoError(t, err)
	sig := env.connect(t, "s1", "alice")

	_, err = o.Join(ctx, "s1", "vault", "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, o.Members.Count("vault"))
	_, inRoom := o.Registry.RoomOf("s1")
	assert.False(t, inRoom)
	assert.Empty(t, sig.events(t, core.EventRoomJoined))

	n, err := o.Join(ctx, "s1", "vault", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScenario_WrongPasswordKeepsCurrentRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	_, err := o.CreateRoom(ctx, "vault", "s3cret")
	require.NoError(t, err)
	env.connect(t, "s1", "alice")
	_, err = o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)

	_, err = o.Join(ctx, "s1", "vault", "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, 1, o.Members.Count("R1"))
	assert.Equal(t, 0, o.Members.Count("vault"))
	room, inRoom := o.Registry.RoomOf("s1")
	assert.True(t, inRoom)
	assert.Equal(t, domain.RoomName("R1"), room)
	_, err = o.Rooms.Get(ctx, "R1")
	assert.NoError(t, err)
	count, err := env.backend.Archives.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := o.Join(ctx, "s1", "vault", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, o.Members.Count("R1"))
}

func TestScenario_SameIdentityDisconnects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	o.Connect("s1", &fakeSignal{}, func() {})
	o.Connect("s2", &fakeSignal{}, func() {})

	var wg sync.WaitGroup
	for _, sid := range []core.SessionID{"s1", "s2"} {
		wg.Add(1)
		go func(sid core.SessionID) {
			defer wg.Done()
			assert.NoError(t, o.Authenticate(ctx, sid, "bob"))
		}(sid)
	}
	wg.Wait()
	assert.Equal(t, 2, o.Registry.RefCount("bob"))

	o.OnDisconnect(ctx, "s1")
	assert.True(t, o.Registry.IsOnline("bob"))
	o.OnDisconnect(ctx, "s2")
	o.OnDisconnect(ctx, "s2")
	assert.Equal(t, 0, o.Registry.RefCount("bob"))
}

func TestAuthenticate_SwitchInRoomKeepsPresence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "s1", "alice")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)

	assert.ErrorIs(t, o.Authenticate(ctx, "s1", "mallory"), domain.ErrConflict)
	assert.Equal(t, []domain.Identity{"alice"}, o.Members.Identities("R1"))
	assert.False(t, o.Registry.IsOnline("mallory"))

	o.OnDisconnect(ctx, "s1")
	entry, err := env.backend.Archives.Latest(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{"alice"}, entry.MembersAtDelete)
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch
	watcher := env.connect(t, "w", "")

	room, err := o.CreateRoom(ctx, "R1", "pw")
	require.NoError(t, err)
	assert.True(t, room.HasPassword())

	created := watcher.presence(t, core.PresenceRoomCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "R1", created[0]["room"])
	assert.Equal(t, float64(0), created[0]["memberCount"])

	_, err = o.CreateRoom(ctx, "R1", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = o.CreateRoom(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestJoin_AutoCreatesAndRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	anon := env.connect(t, "anon", "")
	_, err := o.Join(ctx, "anon", "R1", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, anon.presence(t, core.PresenceRoomCreated))

	env.connect(t, "s1", "alice")
	_, err = o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	assert.Len(t, anon.presence(t, core.PresenceRoomCreated), 1)

	room, err := env.backend.Rooms.Get(ctx, "R1")
	require.NoError(t, err)
	assert.False(t, room.HasPassword())
}

func TestJoin_SameRoomTwiceCountsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	sig := env.connect(t, "s1", "alice")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	n, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Len(t, sig.events(t, core.EventRoomJoined), 2)
}

func TestJoin_SwitchingRoomsLeavesPrevious(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "s1", "alice")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	_, err = o.Join(ctx, "s1", "R2", "")
	require.NoError(t, err)

	assert.Equal(t, 0, o.Members.Count("R1"))
	assert.Equal(t, 1, o.Members.Count("R2"))
	entry, err := env.backend.Archives.Latest(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonMemberLeft, entry.Reason)
	room, _ := o.Registry.RoomOf("s1")
	assert.Equal(t, domain.RoomName("R2"), room)
}

func TestLeave_NotAMemberIsIgnored(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "s1", "alice")
	err := o.Leave(ctx, "s1", "R1")
	assert.ErrorIs(t, err, domain.ErrStateInconsistency)

	count, err := env.backend.Archives.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSendMessage_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "anon", "")
	assert.ErrorIs(t, o.SendMessage(ctx, "anon", "R1", "hi", nil), domain.ErrUnauthorized)

	env.connect(t, "s1", "alice")
	assert.ErrorIs(t, o.SendMessage(ctx, "s1", "R1", "hi", nil), domain.ErrStateInconsistency)

	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	assert.ErrorIs(t, o.SendMessage(ctx, "s1", "R1", "", nil), domain.ErrValidation)

	file := &domain.FileRef{ID: "f1", Name: "a.txt", URL: domain.FileURLPrefix + "f1", Size: 3}
	require.NoError(t, o.SendMessage(ctx, "s1", "R1", "", file))
	room, err := env.backend.Rooms.Get(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, room.History, 1)
	assert.Equal(t, "a.txt", room.History[0].File.Name)
}

func TestDisconnect_LastMemberArchives(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "s1", "alice")
	env.connect(t, "s2", "bob")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	_, err = o.Join(ctx, "s2", "R1", "")
	require.NoError(t, err)

	o.OnDisconnect(ctx, "s2")
	_, err = env.backend.Archives.Latest(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	o.OnDisconnect(ctx, "s1")
	entry, err := env.backend.Archives.Latest(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonDisconnectLastMember, entry.Reason)
	assert.Equal(t, []domain.Identity{"alice"}, entry.MembersAtDelete)
}

func TestLeaveAndDisconnectRace_ArchivesOnce(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		env := newTestEnv(t)
		o := env.orch
		env.connect(t, "s1", "alice")
		_, err := o.Join(ctx, "s1", "R1", "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); _ = o.Leave(ctx, "s1", "R1") }()
		go func() { defer wg.Done(); o.OnDisconnect(ctx, "s1") }()
		go func() { defer wg.Done(); o.OnDisconnect(ctx, "s1") }()
		wg.Wait()

		count, err := env.backend.Archives.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "iteration %d", i)
		assert.Equal(t, 0, o.Registry.RefCount("alice"))
	}
}

func TestConcurrentJoinLeave_CountsMatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "anchor", "host")
	_, err := o.Join(ctx, "anchor", "R1", "")
	require.NoError(t, err)

	const n = 40
	sids := make([]core.SessionID, n)
	for i := range sids {
		sids[i] = core.SessionID(fmt.Sprintf("s%d", i))
		env.connect(t, sids[i], domain.Identity(fmt.Sprintf("user%d", i%10)))
	}

	var wg sync.WaitGroup
	for _, sid := range sids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Join(ctx, sid, "R1", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, n+1, o.Members.Count("R1"))

	for i, sid := range sids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, o.Leave(ctx, sid, "R1"))
				return
			}
			o.OnDisconnect(ctx, sid)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, o.Members.Count("R1"))
	count, err := env.backend.Archives.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, o.Leave(ctx, "anchor", "R1"))
	count, err = env.backend.Archives.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	entry, err := env.backend.Archives.Latest(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{"host"}, entry.MembersAtDelete)
}

func TestJoinAfterDisconnect_Fails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "s1", "alice")
	o.OnDisconnect(ctx, "s1")
	_, err := o.Join(ctx, "s1", "R1", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, o.Members.Count("R1"))
}

func TestArchive_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{0, 3, domain.HistoryLimit + 5} {
		t.Run(fmt.Sprintf("%d messages", n), func(t *testing.T) {
			env := newTestEnv(t)
			o := env.orch
			env.connect(t, "s1", "alice")
			_, err := o.Join(ctx, "s1", "R1", "")
			require.NoError(t, err)
			for i := 0; i < n; i++ {
				require.NoError(t, o.SendMessage(ctx, "s1", "R1", fmt.Sprintf("m%d", i), nil))
			}
			live, err := env.backend.Rooms.Get(ctx, "R1")
			require.NoError(t, err)

			require.NoError(t, o.Leave(ctx, "s1", "R1"))
			entry, err := env.backend.Archives.Latest(ctx, "R1")
			require.NoError(t, err)

			assert.Equal(t, n, entry.MessageCount)
			assert.LessOrEqual(t, len(entry.History), domain.HistoryLimit)
			assert.Len(t, entry.History, len(live.History))
			for i := range live.History {
				assert.Equal(t, live.History[i].Text, entry.History[i].Text)
			}
		})
	}
}

func TestRejoinAfterArchive_StartsFresh(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "s1", "alice")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	require.NoError(t, o.SendMessage(ctx, "s1", "R1", "old", nil))
	require.NoError(t, o.Leave(ctx, "s1", "R1"))

	_, err = o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	room, err := env.backend.Rooms.Get(ctx, "R1")
	require.NoError(t, err)
	assert.Empty(t, room.History)
	assert.Zero(t, room.MessageCount)
}

type failingArchives struct {
	core.ArchiveStore
}

func (failingArchives) Append(context.Context, *domain.ArchiveEntry) error {
	return fmt.Errorf("append: %w: %w", domain.ErrBackend, errors.New("disk full"))
}

func TestArchiveFailure_KeepsRoomLive(t *testing.T) {
	ctx := context.Background()
	base := newTestEnv(t).backend
	base.Archives = failingArchives{base.Archives}
	env := newTestEnvWith(base)
	o := env.orch

	env.connect(t, "s1", "alice")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	require.NoError(t, o.Leave(ctx, "s1", "R1"))

	_, err = env.backend.Rooms.Get(ctx, "R1")
	assert.NoError(t, err)
	assert.Equal(t, 0, o.Members.Count("R1"))
}

func TestAdminState_LiveCounts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	admin := env.connect(t, "adm", domain.DefaultAdmin)
	env.connect(t, "s1", "alice")
	env.connect(t, "s2", "bob")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	_, err = o.Join(ctx, "s2", "R1", "")
	require.NoError(t, err)

	state, err := o.Admin.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, state.Rooms, 1)
	assert.Equal(t, o.Members.Count("R1"), state.Rooms[0].MemberCount)
	assert.Equal(t, []domain.Identity{"alice", "bob"}, state.Users)

	pushed := admin.events(t, core.EventAdminState)
	require.NotEmpty(t, pushed)
	last := pushed[len(pushed)-1]["state"].(map[string]any)
	rooms := last["rooms"].([]any)
	require.Len(t, rooms, 1)
	assert.Equal(t, float64(2), rooms[0].(map[string]any)["memberCount"])

	o.OnDisconnect(ctx, "s2")
	state, err = o.Admin.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Rooms[0].MemberCount)
	assert.Equal(t, []domain.Identity{"alice"}, state.Users)
}

func TestRequestAdminState_AdminOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	user := env.connect(t, "s1", "alice")
	assert.ErrorIs(t, o.RequestAdminState(ctx, "s1"), domain.ErrUnauthorized)
	assert.Empty(t, user.events(t, core.EventAdminState))

	admin := env.connect(t, "adm", domain.DefaultAdmin)
	admin.reset()
	require.NoError(t, o.RequestAdminState(ctx, "adm"))
	assert.Len(t, admin.events(t, core.EventAdminState), 1)
}

func TestBackpressure_KicksSlowSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.orch

	env.connect(t, "s1", "alice")
	slow := env.connect(t, "s2", "bob")
	_, err := o.Join(ctx, "s1", "R1", "")
	require.NoError(t, err)
	_, err = o.Join(ctx, "s2", "R1", "")
	require.NoError(t, err)

	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	require.NoError(t, o.SendMessage(ctx, "s1", "R1", "hi", nil))
	assert.Eventually(t, slow.isClosed, time.Second, 10*time.Millisecond)
}

func TestSendError_UsesPublicMessage(t *testing.T) {
	env := newTestEnv(t)
	sig := env.connect(t, "s1", "alice")

	env.orch.SendError("s1", core.EventChatMessage, fmt.Errorf("append: %w: %w", domain.ErrBackend, errors.New("db locked")))
	errs := sig.events(t, core.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "backend", errs[0]["code"])
	assert.Equal(t, core.EventChatMessage, errs[0]["request"])
	assert.NotContains(t, errs[0]["message"], "db locked")
}
