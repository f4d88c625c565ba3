package domain

import "time"

// ServerKey is a server encryption key wrapped for one recipient. The blob is
// opaque to the backend.
type ServerKey struct {
	ServerID     ServerID  `json:"serverId"`
	UserID       UserID    `json:"userId"`
	EncryptedKey string    `json:"encryptedKey"`
	SharedBy     UserID    `json:"sharedBy"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
