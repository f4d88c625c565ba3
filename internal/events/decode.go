package events

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

var (
	ErrMalformed      = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown event type")
	ErrInvalidPayload = errors.New("invalid payload")
)

var constructors = map[string]func() ClientEvent{
	"ping":                func() ClientEvent { return &Ping{} },
	"subscribe_channel":   func() ClientEvent { return &SubscribeChannel{} },
	"unsubscribe_channel": func() ClientEvent { return &UnsubscribeChannel{} },
	"subscribe_dm":        func() ClientEvent { return &SubscribeDM{} },
	"unsubscribe_dm":      func() ClientEvent { return &UnsubscribeDM{} },
	"send_message":        func() ClientEvent { return &SendMessage{} },
	"edit_message":        func() ClientEvent { return &EditMessage{} },
	"delete_message":      func() ClientEvent { return &DeleteMessage{} },
	"add_reaction":        func() ClientEvent { return &AddReaction{} },
	"remove_reaction":     func() ClientEvent { return &RemoveReaction{} },
	"typing_start":        func() ClientEvent { return &TypingStart{} },
	"typing_stop":         func() ClientEvent { return &TypingStop{} },
	"voice_state_update":  func() ClientEvent { return &VoiceStateUpdate{} },
	"voice_drink_update":  func() ClientEvent { return &VoiceDrinkUpdate{} },
	"send_dm":             func() ClientEvent { return &SendDM{} },
	"dm_typing_start":     func() ClientEvent { return &DMTypingStart{} },
	"dm_typing_stop":      func() ClientEvent { return &DMTypingStop{} },
	"update_activity":     func() ClientEvent { return &UpdateActivity{} },
	"update_status":       func() ClientEvent { return &UpdateStatus{} },
	"share_server_key":    func() ClientEvent { return &ShareServerKey{} },
	"request_server_key":  func() ClientEvent { return &RequestServerKey{} },
	"room_knock":          func() ClientEvent { return &RoomKnock{} },
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode parses one inbound frame into its event type and checks the
// payload's structural constraints. Content policy and authorization are
// left to the handlers.
func Decode(data []byte) (ClientEvent, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ctor, ok := constructors[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	ev := ctor()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	if err := validate.Struct(ev); err != nil {
		return ev, fmt.Errorf("%w: %s", ErrInvalidPayload, describe(err))
	}
	return ev, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
