package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ctl.ping(c); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(id core.ConnectionID, user domain.User, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Str("user", string(user.ID)).Msg("readPump closing")
		ctl.Orch.Disconnect(context.WithoutCancel(ctl.ctx), id)
		c.Close()
	}()

	ctl.armKeepalive(c)
	limiter := rate.NewLimiter(rate.Limit(ctl.opts.InboundRate), ctl.opts.InboundBurst)
	caller := events.Caller{Conn: id, UserID: user.ID, Username: user.Username}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
			}
			return
		}
		ctl.extendDeadline(c)
		if !limiter.Allow() {
			ctl.sendError(c, "rate limit exceeded")
			continue
		}
		ctl.handleSignal(caller, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(caller events.Caller, c *WsSignalConn, data []byte) {
	ev, err := events.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(caller.Conn)).Msg("bad frame")
		ctl.sendError(c, decodeMessage(err))
		return
	}
	if !ctl.slots.TryAcquire(1) {
		log.Warn().Str("module", "signal").Str("conn", string(caller.Conn)).Str("type", ev.Type()).Msg("workers busy, frame refused")
		ctl.sendError(c, "server busy, try again")
		return
	}
	ctl.workers.Go(func() {
		defer ctl.slots.Release(1)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("module", "signal").Str("conn", string(caller.Conn)).Str("type", ev.Type()).Msg("handler panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(ctl.ctx, handlerTimeout)
		defer cancel()
		ev.Dispatch(ctx, caller, ctl.Orch)
	})
}

func decodeMessage(err error) string {
	switch {
	case errors.Is(err, events.ErrUnknownType):
		return "unknown event type"
	case errors.Is(err, events.ErrInvalidPayload):
		return err.Error()
	default:
		return "malformed frame"
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, msg string) {
	if err := c.TrySend(events.ErrorFrame(msg)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("error frame dropped")
	}
}
