package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

func (o *Orchestrator) VoiceStateUpdate(ctx context.Context, c events.Caller, ev *events.VoiceStateUpdate) {
	switch ev.Action {
	case events.VoiceJoin:
		o.joinVoice(ctx, c, ev.ChannelID)
	case events.VoiceLeave:
		o.leaveVoice(ctx, c)
	}
}

func (o *Orchestrator) joinVoice(ctx context.Context, c events.Caller, ch domain.ChannelID) {
	channel, ok := o.channelFor(ctx, c, ch)
	if !ok || channel.Kind != domain.ChannelVoice {
		return
	}
	mv, ok := o.Gateway.VoiceJoin(c.Conn, ch)
	if !ok {
		return
	}
	log.Info().Str("module", "orch").Str("conn", string(c.Conn)).Str("user", string(c.UserID)).Str("room", string(ch)).Str("from", string(mv.Left)).Msg("voice join")
	if mv.Left != "" {
		o.broadcastRoster(mv.Left)
		if mv.LeftEmpty {
			o.armIfEphemeral(ctx, mv.Left)
		}
	}
	o.broadcastRoster(ch)
}

func (o *Orchestrator) leaveVoice(ctx context.Context, c events.Caller) {
	mv, ok := o.Gateway.VoiceLeave(c.Conn)
	if !ok {
		return
	}
	log.Info().Str("module", "orch").Str("conn", string(c.Conn)).Str("user", string(c.UserID)).Str("room", string(mv.Left)).Msg("voice leave")
	o.broadcastRoster(mv.Left)
	if mv.LeftEmpty {
		o.armIfEphemeral(ctx, mv.Left)
	}
}

func (o *Orchestrator) VoiceDrinkUpdate(_ context.Context, c events.Caller, ev *events.VoiceDrinkUpdate) {
	if !o.Gateway.UpdateDrinkCount(c.UserID, ev.ChannelID, ev.Count) {
		return
	}
	o.broadcastRoster(ev.ChannelID)
}

// broadcastRoster sends the full current roster of ch to everyone.
func (o *Orchestrator) broadcastRoster(ch domain.ChannelID) {
	o.Gateway.BroadcastAll(events.VoiceState{
		ChannelID:    ch,
		Participants: o.Gateway.VoiceChannelParticipants(ch),
	})
}

// armIfEphemeral schedules deletion of a room that just emptied.
func (o *Orchestrator) armIfEphemeral(ctx context.Context, room domain.ChannelID) {
	ephemeral, err := o.Store.IsEphemeralRoom(ctx, room)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(room)).Msg("ephemeral room check failed")
		return
	}
	if !ephemeral {
		return
	}
	o.Gateway.ScheduleRoomCleanup(room, o.CleanupDelay, o.Store)
}

func (o *Orchestrator) RoomKnock(ctx context.Context, c events.Caller, ev *events.RoomKnock) {
	if !o.knocks().Allow(c.UserID) {
		o.reject(c, "too many knocks, slow down")
		return
	}
	room, ok := o.channelFor(ctx, c, ev.ChannelID)
	if !ok || room.Kind != domain.ChannelVoice || !room.Locked {
		return
	}
	mods, err := o.Store.ListModerators(ctx, room.ServerID)
	if err != nil {
		o.storeFailed(err, c, "list_moderators")
	}

	targets := make(map[domain.UserID]struct{}, len(mods)+1)
	if room.CreatorID != "" {
		targets[room.CreatorID] = struct{}{}
	}
	for _, m := range mods {
		targets[m] = struct{}{}
	}
	delete(targets, c.UserID)

	knock := events.RoomKnocked{ChannelID: room.ID, UserID: c.UserID, Username: o.displayName(c)}
	for uid := range targets {
		o.Gateway.SendToUser(uid, knock)
	}
	log.Info().Str("module", "orch").Str("user", string(c.UserID)).Str("room", string(room.ID)).Int("notified", len(targets)).Msg("room knock")
}

// SweepStaleRooms deletes ephemeral rooms nobody is in. Run at startup, it
// clears rooms whose cleanup timers died with the previous process.
func (o *Orchestrator) SweepStaleRooms(ctx context.Context) (int, error) {
	rooms, err := o.Store.ListEphemeralRooms(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, room := range rooms {
		if len(o.Gateway.VoiceChannelParticipants(room)) > 0 {
			continue
		}
		o.Gateway.CancelRoomCleanup(room)
		if err := o.Store.DeleteChannel(ctx, room); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		o.Gateway.DropChannel(room)
		o.Gateway.BroadcastAll(events.RoomDeleted{ChannelID: room})
		deleted++
	}
	log.Info().Str("module", "orch").Int("deleted", deleted).Int("checked", len(rooms)).Msg("stale room sweep")
	return deleted, nil
}
