package gateway

import "github.com/dkeye/hearth/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose outbound queue was full
// when a frame was fanned out to it.
type Policy interface {
	OnBackPressure(conn core.ConnectionID) BackpressureAction
}

// DropPolicy drops the frame for that connection and nothing else. The
// broadcaster stays live; the client's own heartbeat logic reconnects it.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.ConnectionID) BackpressureAction { return DropFrame }

// KickPolicy closes connections that cannot keep up.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.ConnectionID) BackpressureAction { return KickMember }
