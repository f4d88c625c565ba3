package orch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/adapters/store/memory"
	"github.com/dkeye/hearth/internal/app/gateway"
	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/core/coretest"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

const (
	server  domain.ServerID  = "s1"
	general domain.ChannelID = "general"
	random  domain.ChannelID = "random"
	lounge  domain.ChannelID = "lounge"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	clock *coretest.FakeClock
	gw    *gateway.Gateway
	o     *Orchestrator

	clients []*client
}

type client struct {
	id     core.ConnectionID
	conn   *coretest.FakeConn
	caller events.Caller
}

// newFixture seeds one server owned by olga with members alice, bob and
// carol. mallory has an account but no membership.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := coretest.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gw := gateway.New(gateway.Options{Clock: clock})
	t.Cleanup(gw.Close)
	store := memory.New()
	o := New(gw, store)
	o.Clock = clock

	f := &fixture{t: t, ctx: context.Background(), store: store, clock: clock, gw: gw, o: o}
	for _, u := range []domain.User{
		{ID: "olga", Username: "olga"},
		{ID: "alice", Username: "alice", DisplayName: "Alice"},
		{ID: "bob", Username: "bob"},
		{ID: "carol", Username: "carol"},
		{ID: "mallory", Username: "mallory"},
	} {
		require.NoError(t, store.CreateUser(f.ctx, u))
	}
	require.NoError(t, store.CreateServer(f.ctx, domain.Server{ID: server, Name: "Hearth", OwnerID: "olga"}))
	for _, uid := range []domain.UserID{"alice", "bob", "carol"} {
		require.NoError(t, store.AddMember(f.ctx, domain.Member{ServerID: server, UserID: uid, Role: domain.RoleMember}))
	}
	for _, ch := range []domain.Channel{
		{ID: general, ServerID: server, Name: "general", Kind: domain.ChannelText, Persistent: true},
		{ID: random, ServerID: server, Name: "random", Kind: domain.ChannelText, Persistent: true},
		{ID: lounge, ServerID: server, Name: "lounge", Kind: domain.ChannelVoice, Persistent: true},
	} {
		require.NoError(t, store.CreateChannel(f.ctx, ch))
	}
	return f
}

// connectLoud opens a session for uid, keeping the frames the connect produced.
func (f *fixture) connectLoud(uid domain.UserID) *client {
	f.t.Helper()
	u, err := f.store.GetUser(f.ctx, uid)
	require.NoError(f.t, err)
	conn := coretest.NewFakeConn()
	id := f.o.Connect(f.ctx, u, conn)
	c := &client{id: id, conn: conn, caller: events.Caller{Conn: id, UserID: u.ID, Username: u.Username}}
	f.clients = append(f.clients, c)
	return c
}

// connect opens a session for uid and then clears every client's frames,
// so tests start from a quiet state.
func (f *fixture) connect(uid domain.UserID) *client {
	f.t.Helper()
	c := f.connectLoud(uid)
	resetAll(f.clients...)
	return c
}

func (f *fixture) subscribe(c *client, ch domain.ChannelID) {
	f.t.Helper()
	f.o.SubscribeChannel(f.ctx, c.caller, &events.SubscribeChannel{ChannelID: ch})
	require.True(f.t, f.gw.IsSubscribedToChannel(c.id, ch))
}

func (f *fixture) send(c *client, ch domain.ChannelID, content string) domain.MessageID {
	f.t.Helper()
	seen := make(map[domain.MessageID]bool)
	for _, m := range f.store.Messages(ch) {
		seen[m.ID] = true
	}
	f.o.SendMessage(f.ctx, c.caller, &events.SendMessage{ChannelID: ch, Content: content})
	for _, m := range f.store.Messages(ch) {
		if !seen[m.ID] {
			return m.ID
		}
	}
	f.t.Fatalf("no message stored in %s", ch)
	return ""
}

func (f *fixture) join(c *client, ch domain.ChannelID) {
	f.o.VoiceStateUpdate(f.ctx, c.caller, &events.VoiceStateUpdate{ChannelID: ch, Action: events.VoiceJoin})
}

func (f *fixture) leave(c *client) {
	f.o.VoiceStateUpdate(f.ctx, c.caller, &events.VoiceStateUpdate{Action: events.VoiceLeave})
}

func (f *fixture) newRoom(creator domain.UserID, locked bool) domain.Channel {
	f.t.Helper()
	room, err := f.o.CreateChannel(f.ctx, creator, server, NewChannel{Name: "party", Kind: domain.ChannelVoice, Locked: locked})
	require.NoError(f.t, err)
	require.True(f.t, room.IsEphemeralRoom())
	return room
}

func (f *fixture) exists(ch domain.ChannelID) bool {
	_, err := f.store.GetChannel(f.ctx, ch)
	return err == nil
}

func resetAll(cs ...*client) {
	for _, c := range cs {
		c.conn.Reset()
	}
}

func field(ev map[string]any, path ...string) any {
	var cur any = ev
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}
