package orch

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

// dmFor loads a DM conversation the caller takes part in. Anything else is a
// silent miss so non-participants learn nothing about the conversation.
func (o *Orchestrator) dmFor(ctx context.Context, c events.Caller, id domain.DMChannelID) (domain.DMChannel, bool) {
	dm, err := o.Store.GetDMChannel(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.storeFailed(err, c, "get_dm_channel")
		}
		return domain.DMChannel{}, false
	}
	if !dm.HasParticipant(c.UserID) {
		return domain.DMChannel{}, false
	}
	return dm, true
}

func (o *Orchestrator) SubscribeDM(ctx context.Context, c events.Caller, ev *events.SubscribeDM) {
	if _, ok := o.dmFor(ctx, c, ev.DMChannelID); !ok {
		return
	}
	o.Gateway.SubscribeDM(c.Conn, ev.DMChannelID)
}

func (o *Orchestrator) UnsubscribeDM(_ context.Context, c events.Caller, ev *events.UnsubscribeDM) {
	o.Gateway.UnsubscribeDM(c.Conn, ev.DMChannelID)
}

func (o *Orchestrator) SendDM(ctx context.Context, c events.Caller, ev *events.SendDM) {
	if err := o.Content.Check(ev.Content, false); err != nil {
		o.reject(c, err.Error())
		return
	}
	dm, ok := o.dmFor(ctx, c, ev.DMChannelID)
	if !ok {
		return
	}
	msg := domain.DMMessage{
		ID:          domain.MessageID(uuid.NewString()),
		DMChannelID: dm.ID,
		SenderID:    c.UserID,
		SenderName:  o.displayName(c),
		Content:     ev.Content,
		CreatedAt:   o.now(),
	}
	if err := o.Store.InsertDMMessage(ctx, msg); err != nil {
		o.storeFailed(err, c, "insert_dm_message")
		o.Gateway.SendError(c.Conn, "failed to send message")
		return
	}

	out := events.DMMessageCreated{Message: msg}
	o.Gateway.BroadcastDM(dm.ID, out, "")
	// The recipient may be online without the conversation open.
	other := dm.Other(c.UserID)
	if other != c.UserID && !o.Gateway.IsUserSubscribedToDM(other, dm.ID) {
		o.Gateway.SendToUser(other, out)
	}
}

func (o *Orchestrator) DMTypingStart(ctx context.Context, c events.Caller, ev *events.DMTypingStart) {
	if _, ok := o.dmFor(ctx, c, ev.DMChannelID); !ok {
		return
	}
	o.Gateway.BroadcastDM(ev.DMChannelID, events.DMTypingStarted{
		DMChannelID: ev.DMChannelID,
		UserID:      c.UserID,
		Username:    o.displayName(c),
	}, c.Conn)
}

func (o *Orchestrator) DMTypingStop(ctx context.Context, c events.Caller, ev *events.DMTypingStop) {
	if _, ok := o.dmFor(ctx, c, ev.DMChannelID); !ok {
		return
	}
	o.Gateway.BroadcastDM(ev.DMChannelID, events.DMTypingStopped{DMChannelID: ev.DMChannelID, UserID: c.UserID}, c.Conn)
}
