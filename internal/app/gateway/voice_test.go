package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

func TestVoiceRosterSingleMembership(t *testing.T) {
	r := newVoiceRoster()

	mv := r.join("u1", "c1", "Ann", "v1")
	assert.Equal(t, domain.ChannelID("v1"), mv.Joined)
	assert.True(t, mv.JoinedWasEmpty)
	assert.Empty(t, mv.Left)

	mv = r.join("u1", "c1", "Ann", "v2")
	assert.Equal(t, domain.ChannelID("v1"), mv.Left)
	assert.True(t, mv.LeftEmpty)
	assert.True(t, r.isEmpty("v1"))

	ch, ok := r.channelOf("u1")
	require.True(t, ok)
	assert.Equal(t, domain.ChannelID("v2"), ch)
	assert.Len(t, r.participants("v2"), 1)
}

func TestVoiceRosterRejoinFromAnotherConnection(t *testing.T) {
	r := newVoiceRoster()
	r.join("u2", "c9", "Bob", "v1")
	r.join("u1", "c1", "Ann", "v1")
	require.True(t, r.setDrinks("u1", "v1", 3))

	mv := r.join("u1", "c2", "Ann", "v1")
	assert.Empty(t, mv.Left, "same channel is not a move")
	assert.Equal(t, "c1", string(mv.LeftConn))
	assert.False(t, mv.JoinedWasEmpty)
	assert.Equal(t, []events.VoiceParticipant{
		{UserID: "u2", DisplayName: "Bob"},
		{UserID: "u1", DisplayName: "Ann"},
	}, r.participants("v1"), "keeps its place, counter back to zero")

	// The old connection no longer owns the entry.
	assert.Equal(t, VoiceMove{}, r.leave("u1", "c1"))
	_, ok := r.channelOf("u1")
	assert.True(t, ok)

	mv = r.leave("u1", "c2")
	assert.Equal(t, domain.ChannelID("v1"), mv.Left)
	assert.False(t, mv.LeftEmpty)
}

func TestVoiceRosterJoinOrderAndDrinks(t *testing.T) {
	r := newVoiceRoster()
	r.join("u2", "c2", "Bob", "v1")
	r.join("u1", "c1", "Ann", "v1")
	r.join("u3", "c3", "Cid", "v2")

	assert.True(t, r.setDrinks("u1", "v1", 4))
	assert.False(t, r.setDrinks("u1", "v2", 1), "not in that channel")

	assert.Equal(t, []events.VoiceParticipant{
		{UserID: "u2", DisplayName: "Bob"},
		{UserID: "u1", DisplayName: "Ann", DrinkCount: 4},
	}, r.participants("v1"))

	all := r.all()
	require.Len(t, all, 2)
	assert.Equal(t, domain.ChannelID("v1"), all[0].ChannelID)
	assert.Equal(t, domain.ChannelID("v2"), all[1].ChannelID)

	evicted := r.dropRoom("v1")
	assert.Len(t, evicted, 2)
	_, ok := r.channelOf("u2")
	assert.False(t, ok)
	assert.Empty(t, r.dropRoom("v1"))
}
