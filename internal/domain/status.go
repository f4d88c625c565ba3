package domain

import "fmt"

type Status string

const (
	StatusOnline    Status = "online"
	StatusIdle      Status = "idle"
	StatusDND       Status = "dnd"
	StatusInvisible Status = "invisible"
	// StatusOffline is never set by a client; it is what others see for
	// invisible or disconnected users.
	StatusOffline Status = "offline"
)

// ParseStatus accepts only the values a client may set.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusOnline, StatusIdle, StatusDND, StatusInvisible:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Public is the status other users are allowed to observe.
func (s Status) Public() Status {
	if s == StatusInvisible || s == "" {
		return StatusOffline
	}
	return s
}

func (s Status) Visible() bool { return s.Public() != StatusOffline }
