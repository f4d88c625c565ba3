package domain

import "time"

type ChannelID string

type ChannelKind string

const (
	ChannelText  ChannelKind = "text"
	ChannelVoice ChannelKind = "voice"
)

type Channel struct {
	ID         ChannelID   `json:"id"`
	ServerID   ServerID    `json:"serverId"`
	Name       string      `json:"name"`
	Kind       ChannelKind `json:"kind"`
	Persistent bool        `json:"persistent"`
	Locked     bool        `json:"locked"`
	CreatorID  UserID      `json:"creatorId,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// IsEphemeralRoom reports whether the channel is an ad hoc voice room that
// is deleted once nobody is left in it.
func (c *Channel) IsEphemeralRoom() bool {
	return c.Kind == ChannelVoice && !c.Persistent
}
