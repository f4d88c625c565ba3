package orch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

func TestVoiceJoinBroadcastsRosterToAll(t *testing.T) {
	f := newFixture(t)
	alice, carol := f.connect("alice"), f.connect("carol")

	f.join(alice, lounge)
	states := carol.conn.OfType("voice_state")
	require.Len(t, states, 1)
	assert.Equal(t, "lounge", states[0]["channelId"])
	assert.Equal(t, []any{
		map[string]any{"userId": "alice", "displayName": "Alice", "drinkCount": float64(0)},
	}, states[0]["participants"])

	resetAll(alice, carol)
	f.o.VoiceDrinkUpdate(f.ctx, alice.caller, &events.VoiceDrinkUpdate{ChannelID: lounge, Count: 2})
	states = carol.conn.OfType("voice_state")
	require.Len(t, states, 1)
	assert.Equal(t, float64(2), field(states[0]["participants"].([]any)[0].(map[string]any), "drinkCount"))

	resetAll(alice, carol)
	f.o.VoiceDrinkUpdate(f.ctx, carol.caller, &events.VoiceDrinkUpdate{ChannelID: lounge, Count: 9})
	assert.Empty(t, carol.conn.Types(), "carol is not in the channel")
}

func TestVoiceJoinIgnoresTextAndForeignChannels(t *testing.T) {
	f := newFixture(t)
	alice, mallory := f.connect("alice"), f.connect("mallory")

	f.join(alice, general)
	f.join(mallory, lounge)
	assert.Empty(t, f.gw.VoiceStates())
	assert.Empty(t, alice.conn.Types())
}

func TestVoiceMoveUpdatesBothRosters(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	room := f.newRoom("alice", false)
	f.join(alice, lounge)
	alice.conn.Reset()

	f.join(alice, room.ID)
	states := alice.conn.OfType("voice_state")
	require.Len(t, states, 2)
	assert.Equal(t, "lounge", states[0]["channelId"])
	assert.Equal(t, []any{}, states[0]["participants"])
	assert.Equal(t, string(room.ID), states[1]["channelId"])

	ch, ok := f.gw.VoiceChannelOf("alice")
	require.True(t, ok)
	assert.Equal(t, room.ID, ch)
	assert.False(t, f.gw.RoomCleanupArmed(lounge), "persistent channels are never armed")
}

func TestEphemeralRoomCleanup(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.connect("alice"), f.connect("bob"), f.connect("carol")
	room := f.newRoom("alice", false)
	assert.False(t, f.gw.RoomCleanupArmed(room.ID), "a fresh room is not armed")

	f.join(alice, room.ID)
	f.leave(alice)
	assert.True(t, f.gw.RoomCleanupArmed(room.ID))

	f.clock.Advance(f.o.CleanupDelay / 2)
	f.join(bob, room.ID)
	assert.False(t, f.gw.RoomCleanupArmed(room.ID), "rejoin cancels cleanup")

	f.clock.Advance(f.o.CleanupDelay)
	assert.True(t, f.exists(room.ID))
	assert.Empty(t, carol.conn.OfType("room_deleted"))

	f.leave(bob)
	f.clock.Advance(f.o.CleanupDelay)
	assert.False(t, f.exists(room.ID))
	for _, c := range []*client{alice, bob, carol} {
		assert.Len(t, c.conn.OfType("room_deleted"), 1)
	}

	f.clock.Advance(f.o.CleanupDelay)
	assert.Len(t, carol.conn.OfType("room_deleted"), 1, "deleted exactly once")
}

func TestDisconnectArmsRoomCleanup(t *testing.T) {
	f := newFixture(t)
	alice, carol := f.connect("alice"), f.connect("carol")
	room := f.newRoom("alice", false)
	f.join(alice, room.ID)

	f.o.Disconnect(f.ctx, alice.id)
	assert.True(t, f.gw.RoomCleanupArmed(room.ID))

	f.clock.Advance(f.o.CleanupDelay)
	assert.False(t, f.exists(room.ID))
	assert.Len(t, carol.conn.OfType("room_deleted"), 1)
}

func TestDeleteChannelCancelsPendingCleanup(t *testing.T) {
	f := newFixture(t)
	alice, carol := f.connect("alice"), f.connect("carol")
	room := f.newRoom("alice", false)
	f.join(alice, room.ID)
	f.leave(alice)
	require.True(t, f.gw.RoomCleanupArmed(room.ID))

	require.NoError(t, f.o.DeleteChannel(f.ctx, "alice", room.ID))
	assert.False(t, f.gw.RoomCleanupArmed(room.ID))
	assert.Len(t, carol.conn.OfType("room_deleted"), 1)

	f.clock.Advance(f.o.CleanupDelay)
	assert.Len(t, carol.conn.OfType("room_deleted"), 1)
}

func TestDeleteOccupiedRoomEvictsEveryone(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.connect("alice"), f.connect("bob")
	room := f.newRoom("alice", false)
	f.join(alice, room.ID)
	f.join(bob, room.ID)
	resetAll(alice, bob)

	require.NoError(t, f.o.DeleteChannel(f.ctx, "olga", room.ID))
	assert.Empty(t, f.gw.VoiceChannelParticipants(room.ID))
	_, inVoice := f.gw.VoiceChannelOf("bob")
	assert.False(t, inVoice)
	assert.Equal(t, []string{"voice_state", "room_deleted"}, bob.conn.Types())
}

type quota struct{ left int }

func (q *quota) Allow(domain.UserID) bool {
	if q.left == 0 {
		return false
	}
	q.left--
	return true
}

func TestRoomKnock(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol, olga := f.connect("alice"), f.connect("bob"), f.connect("carol"), f.connect("olga")
	locked := f.newRoom("bob", true)
	open := f.newRoom("bob", false)
	resetAll(alice, bob, carol, olga)

	f.o.RoomKnock(f.ctx, alice.caller, &events.RoomKnock{ChannelID: open.ID})
	assert.Empty(t, bob.conn.Types(), "unlocked rooms need no knock")

	f.o.RoomKnock(f.ctx, alice.caller, &events.RoomKnock{ChannelID: locked.ID})
	for _, c := range []*client{bob, olga} {
		got := c.conn.OfType("room_knock")
		require.Len(t, got, 1)
		assert.Equal(t, "alice", got[0]["userId"])
		assert.Equal(t, "Alice", got[0]["username"])
	}
	assert.Empty(t, alice.conn.Types())
	assert.Empty(t, carol.conn.Types())
}

func TestRoomKnockRateLimited(t *testing.T) {
	f := newFixture(t)
	f.o.Knocks = &quota{left: 1}
	alice, bob := f.connect("alice"), f.connect("bob")
	locked := f.newRoom("bob", true)
	resetAll(alice, bob)

	f.o.RoomKnock(f.ctx, alice.caller, &events.RoomKnock{ChannelID: locked.ID})
	f.o.RoomKnock(f.ctx, alice.caller, &events.RoomKnock{ChannelID: locked.ID})

	assert.Len(t, bob.conn.OfType("room_knock"), 1)
	errs := alice.conn.OfType("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "too many knocks, slow down", errs[0]["message"])
}

func TestSweepStaleRooms(t *testing.T) {
	f := newFixture(t)
	alice, carol := f.connect("alice"), f.connect("carol")
	stale := f.newRoom("alice", false)
	busy := f.newRoom("carol", false)
	f.join(carol, busy.ID)
	resetAll(alice, carol)

	n, err := f.o.SweepStaleRooms(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, f.exists(stale.ID))
	assert.True(t, f.exists(busy.ID))
	assert.True(t, f.exists(lounge), "persistent voice channels stay")

	deleted := alice.conn.OfType("room_deleted")
	require.Len(t, deleted, 1)
	assert.Equal(t, string(stale.ID), deleted[0]["channelId"])
}
