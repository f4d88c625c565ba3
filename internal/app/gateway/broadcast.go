package gateway

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

// Fanout serializes an event once and hands the frame to each target's
// bounded outbound queue without blocking. A full or closed queue drops the
// frame for that connection only; the broadcaster never waits on a slow
// client. Frames issued in sequence by one caller reach each queue in that
// order.

// SendTo delivers ev to a single connection.
func (g *Gateway) SendTo(id core.ConnectionID, ev events.ServerEvent) core.PublishResult {
	s, ok := g.sessions.get(id)
	if !ok {
		return core.PublishResult{}
	}
	return g.fanout(ev, []*Session{s})
}

// SendToUser delivers ev to every live connection of user.
func (g *Gateway) SendToUser(user domain.UserID, ev events.ServerEvent) core.PublishResult {
	return g.fanout(ev, g.sessions.ofUser(user))
}

// BroadcastChannel delivers ev to the channel's subscribers, skipping
// exclude when it is not empty.
func (g *Gateway) BroadcastChannel(ch domain.ChannelID, ev events.ServerEvent, exclude core.ConnectionID) core.PublishResult {
	ids := g.channels.Subscribers(ch)
	return g.fanout(ev, g.sessions.lookup(without(ids, exclude)))
}

// BroadcastDM delivers ev to the DM conversation's subscribers, skipping
// exclude when it is not empty.
func (g *Gateway) BroadcastDM(dm domain.DMChannelID, ev events.ServerEvent, exclude core.ConnectionID) core.PublishResult {
	ids := g.dms.Subscribers(dm)
	return g.fanout(ev, g.sessions.lookup(without(ids, exclude)))
}

// BroadcastAll delivers ev to every live connection.
func (g *Gateway) BroadcastAll(ev events.ServerEvent) core.PublishResult {
	return g.fanout(ev, g.sessions.all())
}

// BroadcastAllExcept delivers ev to every live connection but exclude.
func (g *Gateway) BroadcastAllExcept(exclude core.ConnectionID, ev events.ServerEvent) core.PublishResult {
	all := g.sessions.all()
	targets := all[:0]
	for _, s := range all {
		if s.ID != exclude {
			targets = append(targets, s)
		}
	}
	return g.fanout(ev, targets)
}

// BroadcastAllExceptUser delivers ev to every live connection not owned by user.
func (g *Gateway) BroadcastAllExceptUser(user domain.UserID, ev events.ServerEvent) core.PublishResult {
	all := g.sessions.all()
	targets := all[:0]
	for _, s := range all {
		if s.UserID != user {
			targets = append(targets, s)
		}
	}
	return g.fanout(ev, targets)
}

// SendError reports a synchronous rejection to one connection.
func (g *Gateway) SendError(id core.ConnectionID, msg string) {
	g.SendTo(id, events.Error{Message: msg})
}

func (g *Gateway) fanout(ev events.ServerEvent, targets []*Session) core.PublishResult {
	if len(targets) == 0 {
		return core.PublishResult{}
	}
	frame, err := events.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway.broadcast").Str("type", ev.Type()).Msg("encode failed")
		return core.PublishResult{}
	}

	res := core.PublishResult{}
	for _, s := range targets {
		if s.conn == nil {
			continue
		}
		err := s.conn.TrySend(frame)
		switch {
		case err == nil:
			res.SendTo++
		case errors.Is(err, core.ErrBackpressure):
			res.Dropped = append(res.Dropped, s.ID)
		default:
			log.Debug().Err(err).Str("module", "gateway.broadcast").Str("conn", string(s.ID)).Msg("delivery skipped")
		}
	}
	log.Debug().Str("module", "gateway.broadcast").Str("type", ev.Type()).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	g.applyPolicy(res)
	return res
}

func (g *Gateway) applyPolicy(res core.PublishResult) {
	for _, id := range res.Dropped {
		switch g.policy.OnBackPressure(id) {
		case KickMember:
			if s, ok := g.sessions.get(id); ok && s.conn != nil {
				log.Warn().Str("module", "gateway.broadcast").Str("conn", string(id)).Msg("kicking slow connection")
				s.conn.Close()
			}
		case DropFrame:
			log.Debug().Str("module", "gateway.broadcast").Str("conn", string(id)).Msg("frame dropped, queue full")
		case NoAction:
		}
	}
}

func without(ids []core.ConnectionID, exclude core.ConnectionID) []core.ConnectionID {
	if exclude == "" {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
