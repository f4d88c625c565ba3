package orch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

func openDM(t *testing.T, f *fixture, a, b domain.UserID) domain.DMChannel {
	t.Helper()
	dm, err := f.o.OpenDM(f.ctx, a, b)
	require.NoError(t, err)
	return dm
}

func TestOpenDMAnnouncesOnce(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.connect("alice"), f.connect("bob"), f.connect("carol")

	dm := openDM(t, f, "alice", "bob")
	again := openDM(t, f, "bob", "alice")
	assert.Equal(t, dm.ID, again.ID, "the pair is unordered")

	assert.Equal(t, []string{"dm_channel_created"}, alice.conn.Types())
	assert.Equal(t, []string{"dm_channel_created"}, bob.conn.Types())
	assert.Empty(t, carol.conn.Types())

	_, err := f.o.OpenDM(f.ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfDM)
	_, err = f.o.OpenDM(f.ctx, "alice", "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendDMDeliversToParticipantsOnly(t *testing.T) {
	f := newFixture(t)
	alice, bob, mallory := f.connect("alice"), f.connect("bob"), f.connect("mallory")
	dm := openDM(t, f, "alice", "bob")
	f.o.SubscribeDM(f.ctx, alice.caller, &events.SubscribeDM{DMChannelID: dm.ID})
	f.o.SubscribeDM(f.ctx, mallory.caller, &events.SubscribeDM{DMChannelID: dm.ID})
	assert.False(t, f.gw.IsUserSubscribedToDM("mallory", dm.ID))
	resetAll(alice, bob, mallory)

	f.o.SendDM(f.ctx, alice.caller, &events.SendDM{DMChannelID: dm.ID, Content: "psst"})

	assert.Equal(t, []string{"dm_message"}, alice.conn.Types())
	got := bob.conn.OfType("dm_message")
	require.Len(t, got, 1, "bob has the conversation closed but still gets the message")
	assert.Equal(t, "psst", field(got[0], "message", "content"))
	assert.Empty(t, mallory.conn.Types())

	n, err := f.store.CountDMMessages(f.ctx, dm.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSendDMNoDuplicateForSubscribedRecipient(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.connect("alice"), f.connect("bob")
	dm := openDM(t, f, "alice", "bob")
	f.o.SubscribeDM(f.ctx, alice.caller, &events.SubscribeDM{DMChannelID: dm.ID})
	f.o.SubscribeDM(f.ctx, bob.caller, &events.SubscribeDM{DMChannelID: dm.ID})
	resetAll(alice, bob)

	f.o.SendDM(f.ctx, alice.caller, &events.SendDM{DMChannelID: dm.ID, Content: "hi"})
	assert.Equal(t, []string{"dm_message"}, bob.conn.Types())
}

func TestSendDMFromOutsiderIsDropped(t *testing.T) {
	f := newFixture(t)
	alice, bob, mallory := f.connect("alice"), f.connect("bob"), f.connect("mallory")
	dm := openDM(t, f, "alice", "bob")
	f.o.SubscribeDM(f.ctx, alice.caller, &events.SubscribeDM{DMChannelID: dm.ID})
	resetAll(alice, bob, mallory)

	f.o.SendDM(f.ctx, mallory.caller, &events.SendDM{DMChannelID: dm.ID, Content: "let me in"})
	f.o.DMTypingStart(f.ctx, mallory.caller, &events.DMTypingStart{DMChannelID: dm.ID})

	assert.Empty(t, alice.conn.Types())
	assert.Empty(t, bob.conn.Types())
	assert.Empty(t, mallory.conn.Types(), "outsiders learn nothing")
	n, _ := f.store.CountDMMessages(f.ctx, dm.ID)
	assert.Zero(t, n)
}

func TestSendDMEmptyContent(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	dm := openDM(t, f, "alice", "bob")
	alice.conn.Reset()

	f.o.SendDM(f.ctx, alice.caller, &events.SendDM{DMChannelID: dm.ID, Content: ""})
	assert.Equal(t, []string{"error"}, alice.conn.Types())
	n, _ := f.store.CountDMMessages(f.ctx, dm.ID)
	assert.Zero(t, n)
}

func TestDMTypingSkipsSender(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.connect("alice"), f.connect("bob")
	dm := openDM(t, f, "alice", "bob")
	f.o.SubscribeDM(f.ctx, alice.caller, &events.SubscribeDM{DMChannelID: dm.ID})
	f.o.SubscribeDM(f.ctx, bob.caller, &events.SubscribeDM{DMChannelID: dm.ID})
	resetAll(alice, bob)

	f.o.DMTypingStart(f.ctx, alice.caller, &events.DMTypingStart{DMChannelID: dm.ID})
	f.o.DMTypingStop(f.ctx, alice.caller, &events.DMTypingStop{DMChannelID: dm.ID})
	assert.Empty(t, alice.conn.Types())
	assert.Equal(t, []string{"dm_typing_start", "dm_typing_stop"}, bob.conn.Types())

	f.o.UnsubscribeDM(f.ctx, bob.caller, &events.UnsubscribeDM{DMChannelID: dm.ID})
	bob.conn.Reset()
	f.o.DMTypingStart(f.ctx, alice.caller, &events.DMTypingStart{DMChannelID: dm.ID})
	assert.Empty(t, bob.conn.Types())
}
