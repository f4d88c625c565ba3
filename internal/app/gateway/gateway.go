// Package gateway holds the in-memory realtime state of the server: live
// sessions, channel and DM subscriptions, voice rosters, presence and
// activity, and pending room cleanups. It is a best-effort index, not a
// source of truth: operations on unknown keys are no-ops.
//
// Each concern sits behind its own lock, so a presence update never waits on
// a channel subscribe. Reads that span several concerns (the ready snapshot)
// are eventually consistent.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

const cleanupTimeout = 10 * time.Second

type Options struct {
	Clock  core.Clock
	Policy Policy
}

type Gateway struct {
	sessions *sessionTable
	channels *TopicIndex[domain.ChannelID]
	dms      *TopicIndex[domain.DMChannelID]
	voice    *voiceRoster
	presence *presenceBook
	activity *activityBook
	rooms    *RoomScheduler
	policy   Policy

	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) *Gateway {
	policy := opts.Policy
	if policy == nil {
		policy = DropPolicy{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		sessions: newSessionTable(),
		channels: NewTopicIndex[domain.ChannelID](),
		dms:      NewTopicIndex[domain.DMChannelID](),
		voice:    newVoiceRoster(),
		presence: newPresenceBook(),
		activity: newActivityBook(),
		rooms:    NewRoomScheduler(opts.Clock),
		policy:   policy,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a session for conn and reports whether it is the user's
// first live session.
func (g *Gateway) Register(info SessionInfo, conn core.SignalConnection) (core.ConnectionID, bool) {
	st := info.Status
	if st == "" || st == domain.StatusOffline {
		st = domain.StatusOnline
	}
	s := &Session{
		ID:          core.ConnectionID(uuid.NewString()),
		UserID:      info.UserID,
		Username:    info.Username,
		DisplayName: info.DisplayName,
		conn:        conn,
		status:      st,
	}
	first := g.sessions.add(s)
	if first {
		g.presence.set(s.UserID, st)
	} else if _, ok := g.presence.get(s.UserID); !ok {
		g.presence.set(s.UserID, st)
	}
	log.Info().Str("module", "gateway").Str("conn", string(s.ID)).Str("user", string(s.UserID)).Bool("first", first).Msg("session registered")
	return s.ID, first
}

// Departure is what Unregister tore down.
type Departure struct {
	Conn     core.ConnectionID
	UserID   domain.UserID
	Username string
	// Status is the status the session had when it left.
	Status domain.Status
	// Voice is the vacated voice channel, empty if the session held none.
	Voice      domain.ChannelID
	VoiceEmpty bool
	// LastSession reports that the user has no live session any more.
	LastSession bool
}

// Unregister removes the session and all of its subscriptions. It is
// idempotent and accepts ids that never completed registration.
func (g *Gateway) Unregister(id core.ConnectionID) (Departure, bool) {
	// Retire before leaving the table: writes still in flight for this
	// session finish first, so a later last-session forget sees them.
	if s, ok := g.sessions.get(id); ok {
		s.retire()
	}
	s, last := g.sessions.remove(id)
	if s == nil {
		return Departure{}, false
	}
	g.channels.RemoveConn(id)
	g.dms.RemoveConn(id)
	mv := g.voice.leave(s.UserID, id)
	if mv.Left != "" {
		s.clearVoice(mv.Left)
	}
	if last {
		g.presence.forget(s.UserID, g.sessions.online)
		g.activity.forget(s.UserID, g.sessions.online)
	}
	log.Info().Str("module", "gateway").Str("conn", string(id)).Str("user", string(s.UserID)).Bool("last", last).Str("voice", string(mv.Left)).Msg("session unregistered")
	return Departure{
		Conn:        id,
		UserID:      s.UserID,
		Username:    s.Username,
		Status:      s.Status(),
		Voice:       mv.Left,
		VoiceEmpty:  mv.LeftEmpty,
		LastSession: last,
	}, true
}

func (g *Gateway) Session(id core.ConnectionID) (*Session, bool) {
	return g.sessions.get(id)
}

func (g *Gateway) SessionsOf(user domain.UserID) []*Session {
	return g.sessions.ofUser(user)
}

func (g *Gateway) IsOnline(user domain.UserID) bool {
	return g.sessions.online(user)
}

func (g *Gateway) SessionCount() int {
	return g.sessions.count()
}

// SubscribeChannel is idempotent. It reports false for unknown connections.
func (g *Gateway) SubscribeChannel(id core.ConnectionID, ch domain.ChannelID) bool {
	s, ok := g.sessions.get(id)
	if !ok {
		return false
	}
	return s.whileAlive(func() { g.channels.Add(ch, id) })
}

func (g *Gateway) UnsubscribeChannel(id core.ConnectionID, ch domain.ChannelID) {
	g.channels.Remove(ch, id)
}

func (g *Gateway) IsSubscribedToChannel(id core.ConnectionID, ch domain.ChannelID) bool {
	return g.channels.IsSubscribed(ch, id)
}

func (g *Gateway) ChannelSubscribers(ch domain.ChannelID) []core.ConnectionID {
	return g.channels.Subscribers(ch)
}

// DropChannel forgets every subscription to a deleted channel.
func (g *Gateway) DropChannel(ch domain.ChannelID) {
	g.channels.DropTopic(ch)
}

func (g *Gateway) SubscribeDM(id core.ConnectionID, dm domain.DMChannelID) bool {
	s, ok := g.sessions.get(id)
	if !ok {
		return false
	}
	return s.whileAlive(func() { g.dms.Add(dm, id) })
}

func (g *Gateway) UnsubscribeDM(id core.ConnectionID, dm domain.DMChannelID) {
	g.dms.Remove(dm, id)
}

// IsUserSubscribedToDM reports whether any of user's sessions is subscribed to dm.
func (g *Gateway) IsUserSubscribedToDM(user domain.UserID, dm domain.DMChannelID) bool {
	for _, s := range g.sessions.ofUser(user) {
		if g.dms.IsSubscribed(dm, s.ID) {
			return true
		}
	}
	return false
}

// VoiceJoin puts the connection's user into ch, removing any previous roster
// entry first. Joining a room with a pending cleanup cancels it.
func (g *Gateway) VoiceJoin(id core.ConnectionID, ch domain.ChannelID) (VoiceMove, bool) {
	s, ok := g.sessions.get(id)
	if !ok {
		return VoiceMove{}, false
	}
	return g.voiceJoin(s, ch)
}

// voiceJoin refuses a session that Unregister already retired; otherwise
// Unregister waits and then removes the entry written here.
func (g *Gateway) voiceJoin(s *Session, ch domain.ChannelID) (VoiceMove, bool) {
	var mv VoiceMove
	ok := s.whileAlive(func() {
		mv = g.voice.join(s.UserID, s.ID, s.Name(), ch)
		if g.rooms.Cancel(ch) {
			log.Info().Str("module", "gateway").Str("room", string(ch)).Msg("room cleanup cancelled by rejoin")
		}
		if mv.LeftConn != "" && mv.LeftConn != s.ID {
			if prev, ok := g.sessions.get(mv.LeftConn); ok {
				if mv.Left != "" {
					prev.clearVoice(mv.Left)
				} else {
					prev.clearVoice(ch)
				}
			}
		} else if mv.Left != "" {
			s.clearVoice(mv.Left)
		}
		s.setVoice(ch)
	})
	return mv, ok
}

// VoiceLeave removes the connection's roster entry, if it owns one.
func (g *Gateway) VoiceLeave(id core.ConnectionID) (VoiceMove, bool) {
	s, ok := g.sessions.get(id)
	if !ok {
		return VoiceMove{}, false
	}
	mv := g.voice.leave(s.UserID, id)
	if mv.Left == "" {
		return mv, false
	}
	s.clearVoice(mv.Left)
	return mv, true
}

// DropVoiceRoom evicts everyone from ch. If anyone was evicted the emptied
// roster is broadcast to all.
func (g *Gateway) DropVoiceRoom(ch domain.ChannelID) bool {
	evicted := g.voice.dropRoom(ch)
	if len(evicted) == 0 {
		return false
	}
	for _, e := range evicted {
		if s, ok := g.sessions.get(e.conn); ok {
			s.clearVoice(ch)
		}
	}
	g.BroadcastAll(events.VoiceState{ChannelID: ch, Participants: []events.VoiceParticipant{}})
	return true
}

func (g *Gateway) VoiceChannelParticipants(ch domain.ChannelID) []events.VoiceParticipant {
	return g.voice.participants(ch)
}

func (g *Gateway) VoiceChannelOf(user domain.UserID) (domain.ChannelID, bool) {
	return g.voice.channelOf(user)
}

func (g *Gateway) VoiceStates() []events.VoiceState {
	return g.voice.all()
}

// UpdateDrinkCount is a no-op unless user is in ch.
func (g *Gateway) UpdateDrinkCount(user domain.UserID, ch domain.ChannelID, n int) bool {
	return g.voice.setDrinks(user, ch, n)
}

// SetStatus updates the session and the user's last-written status.
func (g *Gateway) SetStatus(id core.ConnectionID, st domain.Status) (domain.UserID, bool) {
	s, ok := g.sessions.get(id)
	if !ok {
		return "", false
	}
	return s.UserID, g.setStatus(s, st)
}

func (g *Gateway) setStatus(s *Session, st domain.Status) bool {
	return s.whileAlive(func() {
		s.setStatus(st)
		g.presence.set(s.UserID, st)
	})
}

// SetActivity with a nil activity clears it.
func (g *Gateway) SetActivity(id core.ConnectionID, act *domain.Activity) (domain.UserID, bool) {
	s, ok := g.sessions.get(id)
	if !ok {
		return "", false
	}
	return s.UserID, g.setActivity(s, act)
}

func (g *Gateway) setActivity(s *Session, act *domain.Activity) bool {
	return s.whileAlive(func() {
		s.setActivity(act)
		g.activity.set(s.UserID, act)
	})
}

func (g *Gateway) UserStatus(user domain.UserID) (domain.Status, bool) {
	return g.presence.get(user)
}

// OnlineUserStatuses returns the raw status of every online user, invisible included.
func (g *Gateway) OnlineUserStatuses() map[domain.UserID]domain.Status {
	return g.presence.snapshot()
}

func (g *Gateway) GetAllActivities() map[domain.UserID]domain.Activity {
	return g.activity.snapshot()
}

// ScheduleRoomCleanup arms the deferred deletion of an ephemeral room. When
// it fires it re-checks that the room is still empty and still ephemeral,
// deletes it from store and tells everyone.
func (g *Gateway) ScheduleRoomCleanup(room domain.ChannelID, delay time.Duration, store core.ChannelStore) {
	log.Info().Str("module", "gateway").Str("room", string(room)).Dur("delay", delay).Msg("room cleanup armed")
	g.rooms.Arm(room, delay, func() { g.cleanupRoom(room, store) })
}

func (g *Gateway) CancelRoomCleanup(room domain.ChannelID) bool {
	return g.rooms.Cancel(room)
}

func (g *Gateway) RoomCleanupArmed(room domain.ChannelID) bool {
	return g.rooms.Armed(room)
}

func (g *Gateway) cleanupRoom(room domain.ChannelID, store core.ChannelStore) {
	if !g.voice.isEmpty(room) {
		return
	}
	ctx, cancel := context.WithTimeout(g.ctx, cleanupTimeout)
	defer cancel()

	ephemeral, err := store.IsEphemeralRoom(ctx, room)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Str("room", string(room)).Msg("room cleanup check failed")
		return
	}
	if !ephemeral || !g.voice.isEmpty(room) {
		return
	}
	if err := store.DeleteChannel(ctx, room); err != nil {
		log.Error().Err(err).Str("module", "gateway").Str("room", string(room)).Msg("room cleanup delete failed")
		return
	}

	// A join that slipped in after the last check is evicted with the room.
	g.DropVoiceRoom(room)
	g.channels.DropTopic(room)
	log.Info().Str("module", "gateway").Str("room", string(room)).Msg("ephemeral room deleted")
	g.BroadcastAll(events.RoomDeleted{ChannelID: room})
}

// Close cancels pending room cleanups and closes every live connection.
func (g *Gateway) Close() {
	g.cancel()
	g.rooms.StopAll()
	for _, s := range g.sessions.all() {
		if s.conn != nil {
			s.conn.Close()
		}
	}
}
