package events

import (
	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
)

// Caller identifies the connection an inbound event arrived on.
type Caller struct {
	Conn     core.ConnectionID
	UserID   domain.UserID
	Username string
}
