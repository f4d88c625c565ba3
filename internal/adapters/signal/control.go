package signal

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Keepalive: the server pings every PingPeriod and expects some traffic,
// a pong or any frame, within PongWait.

func (ctl *SignalWSController) armKeepalive(c *WsSignalConn) {
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	ctl.extendDeadline(c)
	c.conn.SetPongHandler(func(string) error {
		ctl.extendDeadline(c)
		return nil
	})
}

func (ctl *SignalWSController) extendDeadline(c *WsSignalConn) {
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
}

func (ctl *SignalWSController) ping(c *WsSignalConn) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait))
}

func isUnexpectedClose(err error) bool {
	if errors.Is(err, websocket.ErrReadLimit) {
		return true
	}
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived)
}
