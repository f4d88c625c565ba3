package orch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/domain"
)

func TestRenameServer(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")

	_, err := f.o.RenameServer(f.ctx, "alice", server, "Mine now")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.o.RenameServer(f.ctx, "olga", server, "   ")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Empty(t, alice.conn.Types())

	srv, err := f.o.RenameServer(f.ctx, "olga", server, "  Fireplace ")
	require.NoError(t, err)
	assert.Equal(t, "Fireplace", srv.Name)
	got := alice.conn.OfType("server_updated")
	require.Len(t, got, 1)
	assert.Equal(t, "Fireplace", field(got[0], "server", "name"))
}

func TestCreateChannelPermissions(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")

	_, err := f.o.CreateChannel(f.ctx, "alice", server, NewChannel{Name: "announcements"})
	assert.ErrorIs(t, err, domain.ErrForbidden, "members cannot create text channels")
	_, err = f.o.CreateChannel(f.ctx, "mallory", server, NewChannel{Name: "den", Kind: domain.ChannelVoice})
	assert.ErrorIs(t, err, domain.ErrForbidden, "outsiders cannot create rooms")

	ch, err := f.o.CreateChannel(f.ctx, "olga", server, NewChannel{Name: "news", Persistent: false, Locked: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelText, ch.Kind)
	assert.True(t, ch.Persistent, "text channels are always persistent")
	assert.False(t, ch.Locked)
	assert.Len(t, alice.conn.OfType("channel_created"), 1)
	assert.True(t, f.exists(ch.ID))
}

func TestUpdateChannel(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.connect("alice"), f.connect("bob")
	room := f.newRoom("alice", false)
	resetAll(alice, bob)

	locked := true
	_, err := f.o.UpdateChannel(f.ctx, "bob", room.ID, ChannelPatch{Locked: &locked})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	name := "after party"
	ch, err := f.o.UpdateChannel(f.ctx, "alice", room.ID, ChannelPatch{Name: &name, Locked: &locked})
	require.NoError(t, err)
	assert.True(t, ch.Locked)
	assert.Equal(t, "after party", ch.Name)
	assert.Len(t, bob.conn.OfType("channel_updated"), 1)

	stored, err := f.store.GetChannel(f.ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, stored.Locked)

	_, err = f.o.UpdateChannel(f.ctx, "alice", "missing", ChannelPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteTextChannel(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	f.subscribe(alice, random)
	alice.conn.Reset()

	assert.ErrorIs(t, f.o.DeleteChannel(f.ctx, "alice", random), domain.ErrForbidden)
	require.NoError(t, f.o.DeleteChannel(f.ctx, "olga", random))

	assert.Equal(t, []string{"channel_deleted"}, alice.conn.Types())
	assert.False(t, f.gw.IsSubscribedToChannel(alice.id, random))
	assert.False(t, f.exists(random))
}

func TestSearchChannel(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	f.send(alice, general, "the fox jumps")
	f.send(alice, general, "lazy dog")
	f.send(alice, random, "another fox")

	got, err := f.o.SearchChannel(f.ctx, "alice", general, "fox", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "the fox jumps", got[0].Content)

	_, err = f.o.SearchChannel(f.ctx, "mallory", general, "fox", 10)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestVoiceRoster(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	f.join(alice, lounge)

	roster := f.o.VoiceRoster(lounge)
	require.Len(t, roster, 1)
	assert.Equal(t, domain.UserID("alice"), roster[0].UserID)
	assert.Empty(t, f.o.VoiceRoster(general))
}
