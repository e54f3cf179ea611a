package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgs(n int) []Message {
	out := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Message{Author: "alice", Text: fmt.Sprintf("m%d", i)})
	}
	return out
}

func TestAppendCapped_EvictsOldest(t *testing.T) {
	var history []Message
	for _, m := range msgs(HistoryLimit + 1) {
		history = AppendCapped(history, m, HistoryLimit)
	}

	require.Len(t, history, HistoryLimit)
	assert.Equal(t, "m1", history[0].Text)
	assert.Equal(t, fmt.Sprintf("m%d", HistoryLimit), history[len(history)-1].Text)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, fmt.Sprintf("m%d", i+1), history[i].Text)
	}
}

func TestAppendCapped_DoesNotAlias(t *testing.T) {
	base := make([]Message, 2, 10)
	base[0] = Message{Text: "a"}
	base[1] = Message{Text: "b"}

	out := AppendCapped(base, Message{Text: "c"}, 10)
	out[0].Text = "changed"

	assert.Equal(t, "a", base[0].Text)
	assert.Len(t, out, 3)
}

func TestAppendCapped_LimitNeverExceedsCap(t *testing.T) {
	out := AppendCapped(msgs(HistoryLimit), Message{Text: "new"}, HistoryLimit*2)
	assert.Len(t, out, HistoryLimit)
	assert.Equal(t, "new", out[len(out)-1].Text)
}

func TestAppendCapped_DefaultLimit(t *testing.T) {
	out := AppendCapped(msgs(HistoryLimit), Message{Text: "new"}, 0)
	assert.Len(t, out, HistoryLimit)
	assert.Equal(t, "new", out[len(out)-1].Text)
}

func TestRoomName_Validate(t *testing.T) {
	tests := []struct {
		name    RoomName
		wantErr bool
	}{
		{"R1", false},
		{"", true},
		{"   ", true},
		{RoomName(strings.Repeat("x", MaxRoomNameLen)), false},
		{RoomName(strings.Repeat("x", MaxRoomNameLen+1)), true},
	}
	for _, tt := range tests {
		err := tt.name.Validate()
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "name %q", tt.name)
		} else {
			assert.NoError(t, err, "name %q", tt.name)
		}
	}
}

func TestRoom_CheckPassword(t *testing.T) {
	open := &Room{Name: "open"}
	assert.NoError(t, open.CheckPassword(""))
	assert.NoError(t, open.CheckPassword("anything"))
	assert.False(t, open.HasPassword())

	locked := &Room{Name: "locked", Password: "s3cret"}
	assert.True(t, locked.HasPassword())
	assert.NoError(t, locked.CheckPassword("s3cret"))
	assert.ErrorIs(t, locked.CheckPassword("wrong"), ErrUnauthorized)
	assert.ErrorIs(t, locked.CheckPassword(""), ErrUnauthorized)
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, Message{Text: "hi"}.Validate())
	assert.NoError(t, Message{File: &FileRef{Name: "a.txt", URL: FileURLPrefix + "x"}}.Validate())
	assert.ErrorIs(t, Message{Text: "  "}.Validate(), ErrValidation)
	assert.ErrorIs(t, Message{Text: strings.Repeat("x", MaxTextLen+1)}.Validate(), ErrValidation)
}

func TestCredentials_Validate(t *testing.T) {
	assert.NoError(t, Credentials{ID: "bob", Password: "pw"}.Validate())
	assert.ErrorIs(t, Credentials{ID: "", Password: "pw"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Credentials{ID: "bob"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Credentials{ID: Identity(strings.Repeat("b", MaxIdentityLen+1)), Password: "pw"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Credentials{ID: "bob", Password: strings.Repeat("p", MaxPasswordLen+1)}.Validate(), ErrValidation)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", ErrValidation), "validation"},
		{fmt.Errorf("x: %w", ErrConflict), "conflict"},
		{fmt.Errorf("x: %w", ErrUnauthorized), "unauthorized"},
		{fmt.Errorf("x: %w", ErrNotFound), "not_found"},
		{fmt.Errorf("x: %w", ErrStateInconsistency), "ignored"},
		{fmt.Errorf("x: %w: %w", ErrBackend, errors.New("disk full")), "backend"},
		{errors.New("unknown"), "backend"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorCode(tt.err))
	}
}

func TestPublicMessage_HidesBackendDetail(t *testing.T) {
	err := fmt.Errorf("append: %w: %w", ErrBackend, errors.New("database is locked"))
	msg := PublicMessage(err)
	assert.NotContains(t, msg, "database")
	assert.Equal(t, "something went wrong, try again", msg)

	assert.Contains(t, PublicMessage(fmt.Errorf("%w: room name required", ErrValidation)), "room name required")
}

func TestArchiveEntry_Summary(t *testing.T) {
	e := &ArchiveEntry{RoomName: "R1", Password: "pw", MessageCount: 3, History: msgs(3), Reason: ReasonMemberLeft}
	s := e.Summary()
	assert.Equal(t, RoomName("R1"), s.RoomName)
	assert.True(t, s.HasPassword)
	assert.Equal(t, 3, s.MessageCount)
	assert.Equal(t, ReasonMemberLeft, s.Reason)
}
