package orch

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

func (o *Orchestrator) SubscribeChannel(ctx context.Context, c events.Caller, ev *events.SubscribeChannel) {
	if _, ok := o.channelFor(ctx, c, ev.ChannelID); !ok {
		o.reject(c, "channel not found")
		return
	}
	o.Gateway.SubscribeChannel(c.Conn, ev.ChannelID)
}

func (o *Orchestrator) UnsubscribeChannel(_ context.Context, c events.Caller, ev *events.UnsubscribeChannel) {
	o.Gateway.UnsubscribeChannel(c.Conn, ev.ChannelID)
}

func (o *Orchestrator) SendMessage(ctx context.Context, c events.Caller, ev *events.SendMessage) {
	if err := o.Content.Check(ev.Content, len(ev.AttachmentIDs) > 0); err != nil {
		o.reject(c, err.Error())
		return
	}
	channel, ok := o.channelFor(ctx, c, ev.ChannelID)
	if !ok {
		o.reject(c, "channel not found")
		return
	}
	// A blank body is only allowed when at least one attachment will link.
	blank := strings.TrimSpace(ev.Content) == ""
	if blank {
		pending, err := o.Store.UnlinkedAttachments(ctx, c.UserID, ev.AttachmentIDs)
		if err != nil {
			o.storeFailed(err, c, "resolve_attachments")
			o.Gateway.SendError(c.Conn, "failed to send message")
			return
		}
		if len(pending) == 0 {
			o.reject(c, domain.ErrContentEmpty.Error())
			return
		}
	}

	msg := domain.Message{
		ID:          domain.MessageID(uuid.NewString()),
		ChannelID:   channel.ID,
		SenderID:    c.UserID,
		SenderName:  o.displayName(c),
		Content:     ev.Content,
		ReplyToID:   o.replyTarget(ctx, channel.ID, ev.ReplyToID),
		CreatedAt:   o.now(),
		Attachments: []domain.Attachment{},
	}
	if err := o.Store.InsertMessage(ctx, msg); err != nil {
		o.storeFailed(err, c, "insert_message")
		o.Gateway.SendError(c.Conn, "failed to send message")
		return
	}
	if len(ev.AttachmentIDs) > 0 {
		linked, err := o.Store.LinkAttachments(ctx, msg.ID, c.UserID, ev.AttachmentIDs)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("message", string(msg.ID)).Msg("attachment linking failed")
		}
		if len(linked) > 0 {
			msg.Attachments = linked
		}
	}
	if blank && len(msg.Attachments) == 0 {
		// The uploads were linked elsewhere after the check above.
		if err := o.Store.DeleteMessage(ctx, msg.ID); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("message", string(msg.ID)).Msg("empty message rollback failed")
		}
		o.reject(c, domain.ErrContentEmpty.Error())
		return
	}
	if err := o.Store.IndexMessage(ctx, msg); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("message", string(msg.ID)).Msg("search index insert failed")
	}

	o.Gateway.BroadcastChannel(channel.ID, events.MessageCreated{Message: msg}, "")
}

// replyTarget drops a reply reference that does not point into ch.
func (o *Orchestrator) replyTarget(ctx context.Context, ch domain.ChannelID, id domain.MessageID) domain.MessageID {
	if id == "" {
		return ""
	}
	parent, err := o.Store.GetMessage(ctx, id)
	if err != nil || parent.ChannelID != ch {
		return ""
	}
	return id
}

func (o *Orchestrator) EditMessage(ctx context.Context, c events.Caller, ev *events.EditMessage) {
	msg, ok := o.ownMessage(ctx, c, ev.MessageID)
	if !ok {
		return
	}
	if err := o.Content.Check(ev.Content, len(msg.Attachments) > 0); err != nil {
		o.reject(c, err.Error())
		return
	}
	editedAt := o.now()
	if err := o.Store.UpdateMessageContent(ctx, msg.ID, ev.Content, editedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		o.storeFailed(err, c, "update_message")
		o.Gateway.SendError(c.Conn, "failed to edit message")
		return
	}
	msg.Content = ev.Content
	msg.EditedAt = &editedAt
	if err := o.Store.IndexMessage(ctx, msg); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("message", string(msg.ID)).Msg("search index update failed")
	}
	o.Gateway.BroadcastChannel(msg.ChannelID, events.MessageEdited{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
		EditedAt:  editedAt,
	}, "")
}

func (o *Orchestrator) DeleteMessage(ctx context.Context, c events.Caller, ev *events.DeleteMessage) {
	msg, ok := o.ownMessage(ctx, c, ev.MessageID)
	if !ok {
		return
	}
	if err := o.Store.RemoveMessage(ctx, msg.ID); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("message", string(msg.ID)).Msg("search index delete failed")
	}
	if err := o.Store.DeleteMessage(ctx, msg.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		o.storeFailed(err, c, "delete_message")
		o.Gateway.SendError(c.Conn, "failed to delete message")
		return
	}
	o.Gateway.BroadcastChannel(msg.ChannelID, events.MessageDeleted{MessageID: msg.ID, ChannelID: msg.ChannelID}, "")
}

// ownMessage loads a message the caller sent. A vanished message is a silent
// exit, someone else's message is reported to the caller.
func (o *Orchestrator) ownMessage(ctx context.Context, c events.Caller, id domain.MessageID) (domain.Message, bool) {
	msg, err := o.Store.GetMessage(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.storeFailed(err, c, "get_message")
		}
		return domain.Message{}, false
	}
	if msg.SenderID != c.UserID {
		o.reject(c, "you can only change your own messages")
		return domain.Message{}, false
	}
	return msg, true
}

func (o *Orchestrator) AddReaction(ctx context.Context, c events.Caller, ev *events.AddReaction) {
	msg, ok := o.reactable(ctx, c, ev.MessageID)
	if !ok {
		return
	}
	added, err := o.Store.AddReaction(ctx, domain.Reaction{MessageID: msg.ID, UserID: c.UserID, Emoji: ev.Emoji})
	if err != nil {
		o.storeFailed(err, c, "add_reaction")
		return
	}
	if !added {
		return
	}
	o.Gateway.BroadcastChannel(msg.ChannelID, events.ReactionAdded{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		UserID:    c.UserID,
		Emoji:     ev.Emoji,
	}, "")
}

func (o *Orchestrator) RemoveReaction(ctx context.Context, c events.Caller, ev *events.RemoveReaction) {
	msg, ok := o.reactable(ctx, c, ev.MessageID)
	if !ok {
		return
	}
	removed, err := o.Store.RemoveReaction(ctx, domain.Reaction{MessageID: msg.ID, UserID: c.UserID, Emoji: ev.Emoji})
	if err != nil {
		o.storeFailed(err, c, "remove_reaction")
		return
	}
	if !removed {
		return
	}
	o.Gateway.BroadcastChannel(msg.ChannelID, events.ReactionRemoved{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		UserID:    c.UserID,
		Emoji:     ev.Emoji,
	}, "")
}

func (o *Orchestrator) reactable(ctx context.Context, c events.Caller, id domain.MessageID) (domain.Message, bool) {
	msg, err := o.Store.GetMessage(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.storeFailed(err, c, "get_message")
		}
		return domain.Message{}, false
	}
	if _, ok := o.channelFor(ctx, c, msg.ChannelID); !ok {
		return domain.Message{}, false
	}
	return msg, true
}

func (o *Orchestrator) TypingStart(_ context.Context, c events.Caller, ev *events.TypingStart) {
	if !o.Gateway.IsSubscribedToChannel(c.Conn, ev.ChannelID) {
		return
	}
	o.Gateway.BroadcastChannel(ev.ChannelID, events.TypingStarted{
		ChannelID: ev.ChannelID,
		UserID:    c.UserID,
		Username:  o.displayName(c),
	}, c.Conn)
}

func (o *Orchestrator) TypingStop(_ context.Context, c events.Caller, ev *events.TypingStop) {
	if !o.Gateway.IsSubscribedToChannel(c.Conn, ev.ChannelID) {
		return
	}
	o.Gateway.BroadcastChannel(ev.ChannelID, events.TypingStopped{ChannelID: ev.ChannelID, UserID: c.UserID}, c.Conn)
}
