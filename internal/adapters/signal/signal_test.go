package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/events"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, int64(65536), o.ReadLimit)
	assert.Equal(t, 60*time.Second, o.PongWait)
	assert.Less(t, o.PingPeriod, o.PongWait)
	assert.Equal(t, 256, o.SendBuffer)

	o = Options{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}.withDefaults()
	assert.Equal(t, 9*time.Second, o.PingPeriod, "ping must come before the pong deadline")
}

func TestCheckOrigin(t *testing.T) {
	open := &SignalWSController{opts: Options{}}
	strict := &SignalWSController{opts: Options{AllowedOrigins: []string{"https://hearth.example"}}}

	req := httptest.NewRequest("GET", "/api/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, open.checkOrigin(req))
	assert.False(t, strict.checkOrigin(req))

	req.Header.Set("Origin", "https://hearth.example")
	assert.True(t, strict.checkOrigin(req))

	req.Header.Del("Origin")
	assert.True(t, strict.checkOrigin(req), "non-browser clients send no origin")
}

func TestTrySendNeverBlocks(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}

	assert.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), core.ErrBackpressure)
	assert.Equal(t, core.Frame("a"), <-c.send)

	c.closed = true
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), core.ErrConnClosed)
}

func TestDecodeMessage(t *testing.T) {
	assert.Equal(t, "unknown event type", decodeMessage(fmt.Errorf("%w: %q", events.ErrUnknownType, "x")))
	assert.Equal(t, "malformed frame", decodeMessage(fmt.Errorf("%w: eof", events.ErrMalformed)))
	assert.Equal(t, "malformed frame", decodeMessage(errors.New("other")))

	_, err := events.Decode([]byte(`{"type":"subscribe_channel"}`))
	assert.Contains(t, decodeMessage(err), "channelId")
}

func TestHandleSignalRefusesWhenWorkersBusy(t *testing.T) {
	ctl := NewSignalWSController(context.Background(), nil, Options{Workers: 1})
	require.True(t, ctl.slots.TryAcquire(1))

	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	caller := events.Caller{Conn: "c1", UserID: "u1", Username: "u1"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctl.handleSignal(caller, c, []byte(`{"type":"ping"}`))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read loop blocked on a saturated pool")
	}

	var ev map[string]any
	require.NoError(t, json.Unmarshal(<-c.send, &ev))
	assert.Equal(t, "error", ev["type"])
	assert.Equal(t, "server busy, try again", ev["message"])

	ctl.slots.Release(1)
	ctl.Wait()
	assert.True(t, ctl.slots.TryAcquire(1), "nothing holds a slot once idle")
}
