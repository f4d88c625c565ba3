package events

import (
	"time"

	"github.com/dkeye/hearth/internal/domain"
)

// ServerEvent is an event pushed to clients. Type is the wire discriminator.
type ServerEvent interface {
	Type() string
	serverEvent()
}

type serverMarker struct{}

func (serverMarker) serverEvent() {}

type Pong struct{ serverMarker }

type Error struct {
	serverMarker
	Message string `json:"message"`
}

type Presence struct {
	UserID domain.UserID `json:"userId"`
	Status domain.Status `json:"status"`
}

type UserActivity struct {
	UserID   domain.UserID    `json:"userId"`
	Activity *domain.Activity `json:"activity"`
}

type VoiceParticipant struct {
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
	DrinkCount  int           `json:"drinkCount"`
}

// Ready is the initial-state snapshot pushed right after a connection is
// registered. It is assembled from independent maps and is not transactional.
type Ready struct {
	serverMarker
	ConnectionID string         `json:"connectionId"`
	User         domain.User    `json:"user"`
	Presences    []Presence     `json:"presences"`
	Activities   []UserActivity `json:"activities"`
	VoiceStates  []VoiceState   `json:"voiceStates"`
}

type MessageCreated struct {
	serverMarker
	Message domain.Message `json:"message"`
}

type MessageEdited struct {
	serverMarker
	MessageID domain.MessageID `json:"messageId"`
	ChannelID domain.ChannelID `json:"channelId"`
	Content   string           `json:"content"`
	EditedAt  time.Time        `json:"editedAt"`
}

type MessageDeleted struct {
	serverMarker
	MessageID domain.MessageID `json:"messageId"`
	ChannelID domain.ChannelID `json:"channelId"`
}

type ReactionAdded struct {
	serverMarker
	MessageID domain.MessageID `json:"messageId"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Emoji     string           `json:"emoji"`
}

type ReactionRemoved struct {
	serverMarker
	MessageID domain.MessageID `json:"messageId"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Emoji     string           `json:"emoji"`
}

type TypingStarted struct {
	serverMarker
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Username  string           `json:"username"`
}

type TypingStopped struct {
	serverMarker
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
}

// VoiceState carries the full roster of one voice channel. An empty
// Participants list means the channel emptied.
type VoiceState struct {
	serverMarker
	ChannelID    domain.ChannelID   `json:"channelId"`
	Participants []VoiceParticipant `json:"participants"`
}

type DMMessageCreated struct {
	serverMarker
	Message domain.DMMessage `json:"message"`
}

type DMTypingStarted struct {
	serverMarker
	DMChannelID domain.DMChannelID `json:"dmChannelId"`
	UserID      domain.UserID      `json:"userId"`
	Username    string             `json:"username"`
}

type DMTypingStopped struct {
	serverMarker
	DMChannelID domain.DMChannelID `json:"dmChannelId"`
	UserID      domain.UserID      `json:"userId"`
}

type PresenceUpdate struct {
	serverMarker
	UserID domain.UserID `json:"userId"`
	Status domain.Status `json:"status"`
}

type ActivityUpdate struct {
	serverMarker
	UserID   domain.UserID    `json:"userId"`
	Activity *domain.Activity `json:"activity"`
}

type ServerKeyShared struct {
	serverMarker
	ServerID     domain.ServerID `json:"serverId"`
	FromUserID   domain.UserID   `json:"fromUserId"`
	EncryptedKey string          `json:"encryptedKey"`
}

type ServerKeyRequested struct {
	serverMarker
	ServerID domain.ServerID `json:"serverId"`
	UserID   domain.UserID   `json:"userId"`
}

type RoomKnocked struct {
	serverMarker
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Username  string           `json:"username"`
}

type RoomDeleted struct {
	serverMarker
	ChannelID domain.ChannelID `json:"channelId"`
}

type ServerUpdated struct {
	serverMarker
	Server domain.Server `json:"server"`
}

type ChannelCreated struct {
	serverMarker
	Channel domain.Channel `json:"channel"`
}

type ChannelUpdated struct {
	serverMarker
	Channel domain.Channel `json:"channel"`
}

type ChannelDeleted struct {
	serverMarker
	ChannelID domain.ChannelID `json:"channelId"`
	ServerID  domain.ServerID  `json:"serverId"`
}

type DMChannelCreated struct {
	serverMarker
	Channel domain.DMChannel `json:"channel"`
}

func (Pong) Type() string               { return "pong" }
func (Error) Type() string              { return "error" }
func (Ready) Type() string              { return "ready" }
func (MessageCreated) Type() string     { return "message" }
func (MessageEdited) Type() string      { return "message_edited" }
func (MessageDeleted) Type() string     { return "message_deleted" }
func (ReactionAdded) Type() string      { return "reaction_add" }
func (ReactionRemoved) Type() string    { return "reaction_remove" }
func (TypingStarted) Type() string      { return "typing_start" }
func (TypingStopped) Type() string      { return "typing_stop" }
func (VoiceState) Type() string         { return "voice_state" }
func (DMMessageCreated) Type() string   { return "dm_message" }
func (DMTypingStarted) Type() string    { return "dm_typing_start" }
func (DMTypingStopped) Type() string    { return "dm_typing_stop" }
func (PresenceUpdate) Type() string     { return "presence_update" }
func (ActivityUpdate) Type() string     { return "activity_update" }
func (ServerKeyShared) Type() string    { return "server_key" }
func (ServerKeyRequested) Type() string { return "server_key_request" }
func (RoomKnocked) Type() string        { return "room_knock" }
func (RoomDeleted) Type() string        { return "room_deleted" }
func (ServerUpdated) Type() string      { return "server_updated" }
func (ChannelCreated) Type() string     { return "channel_created" }
func (ChannelUpdated) Type() string     { return "channel_updated" }
func (ChannelDeleted) Type() string     { return "channel_deleted" }
func (DMChannelCreated) Type() string   { return "dm_channel_created" }
