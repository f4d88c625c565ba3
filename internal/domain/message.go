package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const DefaultMaxContentLen = 4000

type (
	MessageID    string
	AttachmentID string
)

type Attachment struct {
	ID          AttachmentID `json:"id"`
	MessageID   MessageID    `json:"messageId,omitempty"`
	UploaderID  UserID       `json:"uploaderId"`
	Filename    string       `json:"filename"`
	URL         string       `json:"url"`
	ContentType string       `json:"contentType"`
	Size        int64        `json:"size"`
}

type Message struct {
	ID          MessageID    `json:"id"`
	ChannelID   ChannelID    `json:"channelId"`
	SenderID    UserID       `json:"senderId"`
	SenderName  string       `json:"senderName"`
	Content     string       `json:"content"`
	ReplyToID   MessageID    `json:"replyToId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	EditedAt    *time.Time   `json:"editedAt,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

type Reaction struct {
	MessageID MessageID `json:"messageId"`
	UserID    UserID    `json:"userId"`
	Emoji     string    `json:"emoji"`
}

// ContentPolicy bounds the size of chat and DM bodies.
type ContentPolicy struct {
	MaxLen int
}

// Check rejects blank content and content longer than MaxLen runes. A
// message that carries attachments may have an empty body.
func (p ContentPolicy) Check(content string, hasAttachments bool) error {
	if strings.TrimSpace(content) == "" && !hasAttachments {
		return ErrContentEmpty
	}
	limit := p.MaxLen
	if limit <= 0 {
		limit = DefaultMaxContentLen
	}
	if utf8.RuneCountInString(content) > limit {
		return ErrContentTooLong
	}
	return nil
}
