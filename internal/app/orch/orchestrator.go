// Package orch runs the realtime event handlers. It checks ownership and
// membership against the durable store, mutates gateway state and fans the
// results out.
package orch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/hearth/internal/app/gateway"
	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

const DefaultCleanupDelay = 60 * time.Second

// Limiter throttles room knocks per user.
type Limiter interface {
	Allow(uid domain.UserID) bool
}

type allowAll struct{}

func (allowAll) Allow(domain.UserID) bool { return true }

type Orchestrator struct {
	Gateway      *gateway.Gateway
	Store        core.Store
	Content      domain.ContentPolicy
	CleanupDelay time.Duration
	Knocks       Limiter
	Clock        core.Clock
}

var _ events.Handler = (*Orchestrator)(nil)

func New(gw *gateway.Gateway, store core.Store) *Orchestrator {
	return &Orchestrator{
		Gateway:      gw,
		Store:        store,
		Content:      domain.ContentPolicy{MaxLen: domain.DefaultMaxContentLen},
		CleanupDelay: DefaultCleanupDelay,
		Knocks:       allowAll{},
		Clock:        core.RealClock(),
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Clock == nil {
		return time.Now().UTC()
	}
	return o.Clock.Now().UTC()
}

func (o *Orchestrator) knocks() Limiter {
	if o.Knocks == nil {
		return allowAll{}
	}
	return o.Knocks
}

// Connect registers an authenticated connection, pushes the ready snapshot to
// it and announces the user if this is their first session.
func (o *Orchestrator) Connect(ctx context.Context, user domain.User, conn core.SignalConnection) core.ConnectionID {
	status := user.Status
	if status == "" || status == domain.StatusOffline {
		status = domain.StatusOnline
	}
	id, first := o.Gateway.Register(gateway.SessionInfo{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Status:      status,
	}, conn)

	if !first {
		if st, ok := o.Gateway.UserStatus(user.ID); ok {
			status = st
		}
	}
	user.Status = status
	o.Gateway.SendTo(id, o.readySnapshot(id, user))

	if first && status.Visible() {
		o.Gateway.BroadcastAllExceptUser(user.ID, events.PresenceUpdate{UserID: user.ID, Status: status.Public()})
	}
	return id
}

func (o *Orchestrator) readySnapshot(id core.ConnectionID, user domain.User) events.Ready {
	statuses := o.Gateway.OnlineUserStatuses()
	presences := make([]events.Presence, 0, len(statuses))
	for uid, st := range statuses {
		switch {
		case uid == user.ID:
			presences = append(presences, events.Presence{UserID: uid, Status: st})
		case st.Visible():
			presences = append(presences, events.Presence{UserID: uid, Status: st.Public()})
		}
	}
	sort.Slice(presences, func(i, j int) bool { return presences[i].UserID < presences[j].UserID })

	acts := o.Gateway.GetAllActivities()
	activities := make([]events.UserActivity, 0, len(acts))
	for uid, act := range acts {
		if uid != user.ID && !statuses[uid].Visible() {
			continue
		}
		activities = append(activities, events.UserActivity{UserID: uid, Activity: &act})
	}
	sort.Slice(activities, func(i, j int) bool { return activities[i].UserID < activities[j].UserID })

	return events.Ready{
		ConnectionID: string(id),
		User:         user,
		Presences:    presences,
		Activities:   activities,
		VoiceStates:  o.Gateway.VoiceStates(),
	}
}

// Disconnect tears down a connection. It is safe to call more than once.
func (o *Orchestrator) Disconnect(ctx context.Context, id core.ConnectionID) {
	dep, ok := o.Gateway.Unregister(id)
	if !ok {
		return
	}
	if dep.Voice != "" {
		o.broadcastRoster(dep.Voice)
		if dep.VoiceEmpty {
			o.armIfEphemeral(ctx, dep.Voice)
		}
	}
	if dep.LastSession {
		o.Gateway.BroadcastAll(events.PresenceUpdate{UserID: dep.UserID, Status: domain.StatusOffline})
		o.Gateway.BroadcastAll(events.ActivityUpdate{UserID: dep.UserID})
	}
}

func (o *Orchestrator) Ping(_ context.Context, c events.Caller, _ *events.Ping) {
	o.Gateway.SendTo(c.Conn, events.Pong{})
}

func (o *Orchestrator) reject(c events.Caller, msg string) {
	log.Debug().Str("module", "orch").Str("conn", string(c.Conn)).Str("user", string(c.UserID)).Str("reason", msg).Msg("event rejected")
	o.Gateway.SendError(c.Conn, msg)
}

func (o *Orchestrator) storeFailed(err error, c events.Caller, op string) {
	log.Error().Err(err).Str("module", "orch").Str("conn", string(c.Conn)).Str("user", string(c.UserID)).Str("op", op).Msg("store call failed")
}

// isMember reports whether user belongs to server. Store failures count as
// "no" and are logged.
func (o *Orchestrator) isMember(ctx context.Context, server domain.ServerID, user domain.UserID) bool {
	_, err := o.Store.MemberRole(ctx, server, user)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error().Err(err).Str("module", "orch").Str("server", string(server)).Str("user", string(user)).Msg("member lookup failed")
	}
	return err == nil
}

// channelFor loads ch and checks the caller belongs to its server.
func (o *Orchestrator) channelFor(ctx context.Context, c events.Caller, ch domain.ChannelID) (domain.Channel, bool) {
	channel, err := o.Store.GetChannel(ctx, ch)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.storeFailed(err, c, "get_channel")
		}
		return domain.Channel{}, false
	}
	if !o.isMember(ctx, channel.ServerID, c.UserID) {
		return domain.Channel{}, false
	}
	return channel, true
}

func (o *Orchestrator) displayName(c events.Caller) string {
	if s, ok := o.Gateway.Session(c.Conn); ok {
		return s.Name()
	}
	return c.Username
}
