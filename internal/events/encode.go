package events

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/dkeye/hearth/internal/core"
)

// Encode serializes ev once, as a JSON object whose first member is the
// "type" discriminator.
func Encode(ev ServerEvent) (core.Frame, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: payload is not an object", ev.Type())
	}
	typ, err := json.Marshal(ev.Type())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}

	out := make([]byte, 0, len(body)+len(typ)+10)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}

// ErrorFrame is the pre-encoded form of an error event.
func ErrorFrame(msg string) core.Frame {
	f, err := Encode(Error{Message: msg})
	if err != nil {
		return core.Frame(`{"type":"error","message":"internal error"}`)
	}
	return f
}
