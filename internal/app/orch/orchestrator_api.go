package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

// Mutations issued by the HTTP layer. Each writes to the store first and
// only then broadcasts.

var (
	ErrInvalidName = errors.New("invalid name")
	ErrSelfDM      = errors.New("cannot open a conversation with yourself")
)

const maxNameLen = 100

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

func (o *Orchestrator) requireModerator(ctx context.Context, server domain.ServerID, user domain.UserID) error {
	role, err := o.Store.MemberRole(ctx, server, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrForbidden
		}
		return err
	}
	if !role.CanModerate() {
		return domain.ErrForbidden
	}
	return nil
}

// canManage lets moderators and a room's creator change a channel.
func (o *Orchestrator) canManage(ctx context.Context, ch domain.Channel, user domain.UserID) error {
	if ch.CreatorID != "" && ch.CreatorID == user && o.isMember(ctx, ch.ServerID, user) {
		return nil
	}
	return o.requireModerator(ctx, ch.ServerID, user)
}

func (o *Orchestrator) RenameServer(ctx context.Context, user domain.UserID, id domain.ServerID, name string) (domain.Server, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.Server{}, err
	}
	if err := o.requireModerator(ctx, id, user); err != nil {
		return domain.Server{}, err
	}
	if err := o.Store.RenameServer(ctx, id, name); err != nil {
		return domain.Server{}, fmt.Errorf("rename server: %w", err)
	}
	srv, err := o.Store.GetServer(ctx, id)
	if err != nil {
		return domain.Server{}, fmt.Errorf("reload server: %w", err)
	}
	o.Gateway.BroadcastAll(events.ServerUpdated{Server: srv})
	return srv, nil
}

type NewChannel struct {
	Name       string
	Kind       domain.ChannelKind
	Persistent bool
	Locked     bool
}

// CreateChannel lets moderators create any channel and members create
// ephemeral voice rooms. A fresh room is not armed for cleanup until its
// roster goes from non-empty to empty.
func (o *Orchestrator) CreateChannel(ctx context.Context, user domain.UserID, server domain.ServerID, in NewChannel) (domain.Channel, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return domain.Channel{}, err
	}
	ch := domain.Channel{
		ID:         domain.ChannelID(uuid.NewString()),
		ServerID:   server,
		Name:       name,
		Kind:       in.Kind,
		Persistent: in.Persistent,
		Locked:     in.Locked,
		CreatorID:  user,
		CreatedAt:  o.now(),
	}
	if ch.Kind == "" {
		ch.Kind = domain.ChannelText
	}
	if ch.Kind == domain.ChannelText {
		ch.Persistent = true
		ch.Locked = false
	}

	if ch.IsEphemeralRoom() {
		if !o.isMember(ctx, server, user) {
			return domain.Channel{}, domain.ErrForbidden
		}
	} else if err := o.requireModerator(ctx, server, user); err != nil {
		return domain.Channel{}, err
	}

	if err := o.Store.CreateChannel(ctx, ch); err != nil {
		return domain.Channel{}, fmt.Errorf("create channel: %w", err)
	}
	log.Info().Str("module", "orch").Str("channel", string(ch.ID)).Str("server", string(server)).Str("kind", string(ch.Kind)).Bool("persistent", ch.Persistent).Msg("channel created")
	o.Gateway.BroadcastAll(events.ChannelCreated{Channel: ch})
	return ch, nil
}

type ChannelPatch struct {
	Name   *string
	Locked *bool
}

func (o *Orchestrator) UpdateChannel(ctx context.Context, user domain.UserID, id domain.ChannelID, patch ChannelPatch) (domain.Channel, error) {
	ch, err := o.Store.GetChannel(ctx, id)
	if err != nil {
		return domain.Channel{}, err
	}
	if err := o.canManage(ctx, ch, user); err != nil {
		return domain.Channel{}, err
	}
	if patch.Name != nil {
		name, err := cleanName(*patch.Name)
		if err != nil {
			return domain.Channel{}, err
		}
		ch.Name = name
	}
	if patch.Locked != nil && ch.Kind == domain.ChannelVoice {
		ch.Locked = *patch.Locked
	}
	if err := o.Store.UpdateChannel(ctx, ch); err != nil {
		return domain.Channel{}, fmt.Errorf("update channel: %w", err)
	}
	o.Gateway.BroadcastAll(events.ChannelUpdated{Channel: ch})
	return ch, nil
}

// DeleteChannel removes a channel or room. Pending room cleanup is cancelled
// first so the timer cannot report a second deletion.
func (o *Orchestrator) DeleteChannel(ctx context.Context, user domain.UserID, id domain.ChannelID) error {
	ch, err := o.Store.GetChannel(ctx, id)
	if err != nil {
		return err
	}
	if err := o.canManage(ctx, ch, user); err != nil {
		return err
	}
	o.Gateway.CancelRoomCleanup(id)
	if err := o.Store.DeleteChannel(ctx, id); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	o.Gateway.DropVoiceRoom(id)
	o.Gateway.DropChannel(id)

	if ch.IsEphemeralRoom() {
		o.Gateway.BroadcastAll(events.RoomDeleted{ChannelID: id})
	} else {
		o.Gateway.BroadcastAll(events.ChannelDeleted{ChannelID: id, ServerID: ch.ServerID})
	}
	log.Info().Str("module", "orch").Str("channel", string(id)).Str("user", string(user)).Msg("channel deleted")
	return nil
}

// OpenDM returns the conversation between user and other, creating it on
// first use. Creation is announced to both participants.
func (o *Orchestrator) OpenDM(ctx context.Context, user, other domain.UserID) (domain.DMChannel, error) {
	if user == other {
		return domain.DMChannel{}, ErrSelfDM
	}
	if _, err := o.Store.GetUser(ctx, other); err != nil {
		return domain.DMChannel{}, err
	}
	dm, created, err := o.Store.OpenDMChannel(ctx, user, other)
	if err != nil {
		return domain.DMChannel{}, fmt.Errorf("open dm: %w", err)
	}
	if created {
		ev := events.DMChannelCreated{Channel: dm}
		o.Gateway.SendToUser(user, ev)
		o.Gateway.SendToUser(other, ev)
	}
	return dm, nil
}

func (o *Orchestrator) VoiceRoster(ch domain.ChannelID) []events.VoiceParticipant {
	return o.Gateway.VoiceChannelParticipants(ch)
}

// SearchChannel runs a full-text search over a channel the user can see.
func (o *Orchestrator) SearchChannel(ctx context.Context, user domain.UserID, ch domain.ChannelID, q string, limit int) ([]domain.Message, error) {
	channel, err := o.Store.GetChannel(ctx, ch)
	if err != nil {
		return nil, err
	}
	if !o.isMember(ctx, channel.ServerID, user) {
		return nil, domain.ErrForbidden
	}
	return o.Store.SearchMessages(ctx, ch, q, limit)
}
