package core

import (
	"context"
	"time"

	"github.com/dkeye/hearth/internal/domain"
)

// The store ports below are the boundary with the durable store. Lookups of
// missing rows return an error wrapping domain.ErrNotFound.

type MessageStore interface {
	InsertMessage(ctx context.Context, msg domain.Message) error
	GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error)
	UpdateMessageContent(ctx context.Context, id domain.MessageID, content string, editedAt time.Time) error
	DeleteMessage(ctx context.Context, id domain.MessageID) error
	// LinkAttachments links the uploads in ids that belong to uploader and
	// are not linked to any message yet. It returns the linked attachments.
	LinkAttachments(ctx context.Context, msg domain.MessageID, uploader domain.UserID, ids []domain.AttachmentID) ([]domain.Attachment, error)
	// UnlinkedAttachments returns the uploads in ids that LinkAttachments
	// would link for uploader right now.
	UnlinkedAttachments(ctx context.Context, uploader domain.UserID, ids []domain.AttachmentID) ([]domain.Attachment, error)
}

type ReactionStore interface {
	// AddReaction reports false when the reaction already existed.
	AddReaction(ctx context.Context, r domain.Reaction) (bool, error)
	// RemoveReaction reports false when there was nothing to remove.
	RemoveReaction(ctx context.Context, r domain.Reaction) (bool, error)
}

type DMStore interface {
	GetDMChannel(ctx context.Context, id domain.DMChannelID) (domain.DMChannel, error)
	// OpenDMChannel returns the conversation between a and b, creating it
	// when missing. created reports whether a new row was inserted.
	OpenDMChannel(ctx context.Context, a, b domain.UserID) (dm domain.DMChannel, created bool, err error)
	InsertDMMessage(ctx context.Context, msg domain.DMMessage) error
}

type ChannelStore interface {
	GetChannel(ctx context.Context, id domain.ChannelID) (domain.Channel, error)
	CreateChannel(ctx context.Context, ch domain.Channel) error
	UpdateChannel(ctx context.Context, ch domain.Channel) error
	DeleteChannel(ctx context.Context, id domain.ChannelID) error
	// IsEphemeralRoom reports whether id still exists as a non-persistent voice room.
	IsEphemeralRoom(ctx context.Context, id domain.ChannelID) (bool, error)
	ListEphemeralRooms(ctx context.Context) ([]domain.ChannelID, error)
}

type ServerStore interface {
	GetServer(ctx context.Context, id domain.ServerID) (domain.Server, error)
	RenameServer(ctx context.Context, id domain.ServerID, name string) error
	// MemberRole fails with domain.ErrNotFound when user is not a member.
	MemberRole(ctx context.Context, server domain.ServerID, user domain.UserID) (domain.Role, error)
	// ListModerators returns owners and admins of the server.
	ListModerators(ctx context.Context, server domain.ServerID) ([]domain.UserID, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	SetUserStatus(ctx context.Context, id domain.UserID, status domain.Status) error
	UserForToken(ctx context.Context, token string) (domain.User, error)
}

type KeyStore interface {
	PutServerKey(ctx context.Context, key domain.ServerKey) error
}

// SearchIndex is best-effort: callers log its failures and carry on.
type SearchIndex interface {
	IndexMessage(ctx context.Context, msg domain.Message) error
	RemoveMessage(ctx context.Context, id domain.MessageID) error
	// SearchMessages returns up to limit messages of ch matching q, newest first.
	SearchMessages(ctx context.Context, ch domain.ChannelID, q string, limit int) ([]domain.Message, error)
}

// Store is one connection-pooled handle shared by every task.
type Store interface {
	MessageStore
	ReactionStore
	DMStore
	ChannelStore
	ServerStore
	UserStore
	KeyStore
	SearchIndex
	Close() error
}
