package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"github.com/dkeye/hearth/internal/app/orch"
	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
)

const handlerTimeout = 15 * time.Second

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	Workers        int
	InboundRate    float64
	InboundBurst   int
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 65536
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.Workers <= 0 {
		o.Workers = 64
	}
	if o.InboundRate <= 0 {
		o.InboundRate = 20
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = 40
	}
	return o
}

// SignalWSController accepts WebSocket connections and feeds their events
// to the orchestrator. Handlers run on a shared worker pool so a slow one
// never stalls a connection's read loop; when every worker is taken the
// frame is refused with an error instead of waiting.
type SignalWSController struct {
	Orch *orch.Orchestrator

	ctx      context.Context
	opts     Options
	upgrader websocket.Upgrader
	workers  *pool.Pool
	slots    *semaphore.Weighted

	mu       sync.Mutex
	draining bool
	pumps    conc.WaitGroup
	waitOnce sync.Once
}

func NewSignalWSController(ctx context.Context, o *orch.Orchestrator, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	ctl := &SignalWSController{
		Orch:    o,
		ctx:     ctx,
		opts:    opts,
		workers: pool.New().WithMaxGoroutines(opts.Workers),
		slots:   semaphore.NewWeighted(int64(opts.Workers)),
	}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if len(ctl.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(ctl.opts.AllowedOrigins, origin)
}

// Wait stops accepting connections and blocks until every pump, including
// its disconnect cleanup, and every dispatched handler has returned. Close
// the gateway first so the pumps see their sockets close.
func (ctl *SignalWSController) Wait() {
	ctl.waitOnce.Do(func() {
		ctl.mu.Lock()
		ctl.draining = true
		ctl.mu.Unlock()
		ctl.pumps.Wait()
		ctl.workers.Wait()
	})
}

// WsSignalConn is the bounded outbound queue of one WebSocket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

// TrySend never blocks. A full queue drops the frame for this connection
// only, which keeps broadcasters live when one client falls behind.
func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades an authenticated request and starts its pumps.
func (ctl *SignalWSController) HandleSignal(c *gin.Context, user domain.User) {
	if ctl.isDraining() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(user.ID)).Msg("ws upgrade")
		return
	}

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.draining {
		_ = ws.Close()
		return
	}
	ctl.pumps.Go(func() { ctl.serveConn(ws, user) })
}

func (ctl *SignalWSController) isDraining() bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.draining
}

func (ctl *SignalWSController) serveConn(ws *websocket.Conn, user domain.User) {
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	ctx, cancel := context.WithCancel(ctl.ctx)
	defer cancel()
	id := ctl.Orch.Connect(ctx, user, conn)
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("user", string(user.ID)).Msg("new WS connection")

	ctl.pumps.Go(func() { ctl.writePump(ctx, conn) })
	ctl.readPump(id, user, conn)
}
