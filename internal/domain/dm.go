package domain

import "time"

type DMChannelID string

// DMChannel is a two-party conversation.
type DMChannel struct {
	ID    DMChannelID `json:"id"`
	UserA UserID      `json:"userA"`
	UserB UserID      `json:"userB"`
}

func (d *DMChannel) HasParticipant(id UserID) bool {
	return id != "" && (d.UserA == id || d.UserB == id)
}

// Other returns the participant that is not id.
func (d *DMChannel) Other(id UserID) UserID {
	if d.UserA == id {
		return d.UserB
	}
	return d.UserA
}

type DMMessage struct {
	ID          MessageID   `json:"id"`
	DMChannelID DMChannelID `json:"dmChannelId"`
	SenderID    UserID      `json:"senderId"`
	SenderName  string      `json:"senderName"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"createdAt"`
}
