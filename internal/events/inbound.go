package events

import (
	"context"

	"github.com/dkeye/hearth/internal/domain"
)

// ClientEvent is an event sent by a client. The set is closed: only types in
// this package implement it.
type ClientEvent interface {
	Type() string
	Dispatch(ctx context.Context, c Caller, h Handler)
	clientEvent()
}

// Handler has one method per ClientEvent type.
type Handler interface {
	Ping(ctx context.Context, c Caller, ev *Ping)
	SubscribeChannel(ctx context.Context, c Caller, ev *SubscribeChannel)
	UnsubscribeChannel(ctx context.Context, c Caller, ev *UnsubscribeChannel)
	SubscribeDM(ctx context.Context, c Caller, ev *SubscribeDM)
	UnsubscribeDM(ctx context.Context, c Caller, ev *UnsubscribeDM)
	SendMessage(ctx context.Context, c Caller, ev *SendMessage)
	EditMessage(ctx context.Context, c Caller, ev *EditMessage)
	DeleteMessage(ctx context.Context, c Caller, ev *DeleteMessage)
	AddReaction(ctx context.Context, c Caller, ev *AddReaction)
	RemoveReaction(ctx context.Context, c Caller, ev *RemoveReaction)
	TypingStart(ctx context.Context, c Caller, ev *TypingStart)
	TypingStop(ctx context.Context, c Caller, ev *TypingStop)
	VoiceStateUpdate(ctx context.Context, c Caller, ev *VoiceStateUpdate)
	VoiceDrinkUpdate(ctx context.Context, c Caller, ev *VoiceDrinkUpdate)
	SendDM(ctx context.Context, c Caller, ev *SendDM)
	DMTypingStart(ctx context.Context, c Caller, ev *DMTypingStart)
	DMTypingStop(ctx context.Context, c Caller, ev *DMTypingStop)
	UpdateActivity(ctx context.Context, c Caller, ev *UpdateActivity)
	UpdateStatus(ctx context.Context, c Caller, ev *UpdateStatus)
	ShareServerKey(ctx context.Context, c Caller, ev *ShareServerKey)
	RequestServerKey(ctx context.Context, c Caller, ev *RequestServerKey)
	RoomKnock(ctx context.Context, c Caller, ev *RoomKnock)
}

type clientMarker struct{}

func (clientMarker) clientEvent() {}

type Ping struct{ clientMarker }

type SubscribeChannel struct {
	clientMarker
	ChannelID domain.ChannelID `json:"channelId" validate:"required"`
}

type UnsubscribeChannel struct {
	clientMarker
	ChannelID domain.ChannelID `json:"channelId" validate:"required"`
}

type SubscribeDM struct {
	clientMarker
	DMChannelID domain.DMChannelID `json:"dmChannelId" validate:"required"`
}

type UnsubscribeDM struct {
	clientMarker
	DMChannelID domain.DMChannelID `json:"dmChannelId" validate:"required"`
}

type SendMessage struct {
	clientMarker
	ChannelID     domain.ChannelID      `json:"channelId" validate:"required"`
	Content       string                `json:"content"`
	AttachmentIDs []domain.AttachmentID `json:"attachmentIds" validate:"max=10"`
	ReplyToID     domain.MessageID      `json:"replyToId,omitempty"`
}

type EditMessage struct {
	clientMarker
	MessageID domain.MessageID `json:"messageId" validate:"required"`
	Content   string           `json:"content"`
}

type DeleteMessage struct {
	clientMarker
	MessageID domain.MessageID `json:"messageId" validate:"required"`
}

type AddReaction struct {
	clientMarker
	MessageID domain.MessageID `json:"messageId" validate:"required"`
	Emoji     string           `json:"emoji" validate:"required,max=64"`
}

type RemoveReaction struct {
	clientMarker
	MessageID domain.MessageID `json:"messageId" validate:"required"`
	Emoji     string           `json:"emoji" validate:"required,max=64"`
}

type TypingStart struct {
	clientMarker
	ChannelID domain.ChannelID `json:"channelId" validate:"required"`
}

type TypingStop struct {
	clientMarker
	ChannelID domain.ChannelID `json:"channelId" validate:"required"`
}

const (
	VoiceJoin  = "join"
	VoiceLeave = "leave"
)

type VoiceStateUpdate struct {
	clientMarker
	ChannelID domain.ChannelID `json:"channelId" validate:"required_if=Action join"`
	Action    string           `json:"action" validate:"required,oneof=join leave"`
}

type VoiceDrinkUpdate struct {
	clientMarker
	ChannelID domain.ChannelID `json:"channelId" validate:"required"`
	Count     int              `json:"count" validate:"gte=0,lte=1000"`
}

type SendDM struct {
	clientMarker
	DMChannelID domain.DMChannelID `json:"dmChannelId" validate:"required"`
	Content     string             `json:"content"`
}

type DMTypingStart struct {
	clientMarker
	DMChannelID domain.DMChannelID `json:"dmChannelId" validate:"required"`
}

type DMTypingStop struct {
	clientMarker
	DMChannelID domain.DMChannelID `json:"dmChannelId" validate:"required"`
}

// UpdateActivity with a nil Activity clears it.
type UpdateActivity struct {
	clientMarker
	Activity *domain.Activity `json:"activity"`
}

type UpdateStatus struct {
	clientMarker
	Status string `json:"status" validate:"required"`
}

type ShareServerKey struct {
	clientMarker
	ServerID     domain.ServerID `json:"serverId" validate:"required"`
	UserID       domain.UserID   `json:"userId" validate:"required"`
	EncryptedKey string          `json:"encryptedKey" validate:"required,max=8192"`
}

type RequestServerKey struct {
	clientMarker
	ServerID domain.ServerID `json:"serverId" validate:"required"`
}

type RoomKnock struct {
	clientMarker
	ChannelID domain.ChannelID `json:"channelId" validate:"required"`
}

func (*Ping) Type() string               { return "ping" }
func (*SubscribeChannel) Type() string   { return "subscribe_channel" }
func (*UnsubscribeChannel) Type() string { return "unsubscribe_channel" }
func (*SubscribeDM) Type() string        { return "subscribe_dm" }
func (*UnsubscribeDM) Type() string      { return "unsubscribe_dm" }
func (*SendMessage) Type() string        { return "send_message" }
func (*EditMessage) Type() string        { return "edit_message" }
func (*DeleteMessage) Type() string      { return "delete_message" }
func (*AddReaction) Type() string        { return "add_reaction" }
func (*RemoveReaction) Type() string     { return "remove_reaction" }
func (*TypingStart) Type() string        { return "typing_start" }
func (*TypingStop) Type() string         { return "typing_stop" }
func (*VoiceStateUpdate) Type() string   { return "voice_state_update" }
func (*VoiceDrinkUpdate) Type() string   { return "voice_drink_update" }
func (*SendDM) Type() string             { return "send_dm" }
func (*DMTypingStart) Type() string      { return "dm_typing_start" }
func (*DMTypingStop) Type() string       { return "dm_typing_stop" }
func (*UpdateActivity) Type() string     { return "update_activity" }
func (*UpdateStatus) Type() string       { return "update_status" }
func (*ShareServerKey) Type() string     { return "share_server_key" }
func (*RequestServerKey) Type() string   { return "request_server_key" }
func (*RoomKnock) Type() string          { return "room_knock" }

func (e *Ping) Dispatch(ctx context.Context, c Caller, h Handler) { h.Ping(ctx, c, e) }
func (e *SubscribeChannel) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.SubscribeChannel(ctx, c, e)
}
func (e *UnsubscribeChannel) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.UnsubscribeChannel(ctx, c, e)
}
func (e *SubscribeDM) Dispatch(ctx context.Context, c Caller, h Handler)   { h.SubscribeDM(ctx, c, e) }
func (e *UnsubscribeDM) Dispatch(ctx context.Context, c Caller, h Handler) { h.UnsubscribeDM(ctx, c, e) }
func (e *SendMessage) Dispatch(ctx context.Context, c Caller, h Handler)   { h.SendMessage(ctx, c, e) }
func (e *EditMessage) Dispatch(ctx context.Context, c Caller, h Handler)   { h.EditMessage(ctx, c, e) }
func (e *DeleteMessage) Dispatch(ctx context.Context, c Caller, h Handler) { h.DeleteMessage(ctx, c, e) }
func (e *AddReaction) Dispatch(ctx context.Context, c Caller, h Handler)   { h.AddReaction(ctx, c, e) }
func (e *RemoveReaction) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.RemoveReaction(ctx, c, e)
}
func (e *TypingStart) Dispatch(ctx context.Context, c Caller, h Handler) { h.TypingStart(ctx, c, e) }
func (e *TypingStop) Dispatch(ctx context.Context, c Caller, h Handler)  { h.TypingStop(ctx, c, e) }
func (e *VoiceStateUpdate) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.VoiceStateUpdate(ctx, c, e)
}
func (e *VoiceDrinkUpdate) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.VoiceDrinkUpdate(ctx, c, e)
}
func (e *SendDM) Dispatch(ctx context.Context, c Caller, h Handler)        { h.SendDM(ctx, c, e) }
func (e *DMTypingStart) Dispatch(ctx context.Context, c Caller, h Handler) { h.DMTypingStart(ctx, c, e) }
func (e *DMTypingStop) Dispatch(ctx context.Context, c Caller, h Handler)  { h.DMTypingStop(ctx, c, e) }
func (e *UpdateActivity) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.UpdateActivity(ctx, c, e)
}
func (e *UpdateStatus) Dispatch(ctx context.Context, c Caller, h Handler) { h.UpdateStatus(ctx, c, e) }
func (e *ShareServerKey) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.ShareServerKey(ctx, c, e)
}
func (e *RequestServerKey) Dispatch(ctx context.Context, c Caller, h Handler) {
	h.RequestServerKey(ctx, c, e)
}
func (e *RoomKnock) Dispatch(ctx context.Context, c Caller, h Handler) { h.RoomKnock(ctx, c, e) }
