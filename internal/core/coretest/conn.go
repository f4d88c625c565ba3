package coretest

import (
	"sync"

	json "github.com/goccy/go-json"

	"github.com/dkeye/hearth/internal/core"
)

// FakeConn records every frame it accepts. SetFull makes it refuse frames
// the way a congested outbound queue does.
type FakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

var _ core.SignalConnection = (*FakeConn)(nil)

func NewFakeConn() *FakeConn { return &FakeConn{} }

func (c *FakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *FakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeConn) SetFull(full bool) {
	c.mu.Lock()
	c.full = full
	c.mu.Unlock()
}

// Reset forgets recorded frames.
func (c *FakeConn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// Events decodes the recorded frames.
func (c *FakeConn) Events() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			m = map[string]any{"type": "<undecodable>", "raw": string(f)}
		}
		out = append(out, m)
	}
	return out
}

// Types lists the "type" of every recorded frame in order.
func (c *FakeConn) Types() []string {
	evs := c.Events()
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		t, _ := e["type"].(string)
		out = append(out, t)
	}
	return out
}

// OfType returns the recorded events with the given type.
func (c *FakeConn) OfType(typ string) []map[string]any {
	var out []map[string]any
	for _, e := range c.Events() {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}
