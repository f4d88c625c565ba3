package events

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/domain"
)

func TestDecodeKnownTypes(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"send_message","channelId":"c1","content":"hi","attachmentIds":["a1"],"replyToId":"m0"}`))
	require.NoError(t, err)
	msg, ok := ev.(*SendMessage)
	require.True(t, ok)
	assert.Equal(t, domain.ChannelID("c1"), msg.ChannelID)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, []domain.AttachmentID{"a1"}, msg.AttachmentIDs)
	assert.Equal(t, domain.MessageID("m0"), msg.ReplyToID)

	ev, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", ev.Type())

	ev, err = Decode([]byte(`{"type":"update_activity","activity":null}`))
	require.NoError(t, err)
	assert.Nil(t, ev.(*UpdateActivity).Activity)
}

func TestDecodeEveryRegisteredType(t *testing.T) {
	for typ, ctor := range constructors {
		assert.Equal(t, typ, ctor().Type(), "constructor registered under the wrong name")
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"type":"launch_rockets"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`{"type":"send_message","channelId":42}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"type":"subscribe_channel"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Contains(t, err.Error(), "channelId")
}

func TestDecodeVoiceStateUpdate(t *testing.T) {
	_, err := Decode([]byte(`{"type":"voice_state_update","channelId":"v1","action":"join"}`))
	require.NoError(t, err)

	_, err = Decode([]byte(`{"type":"voice_state_update","action":"leave"}`))
	require.NoError(t, err, "leave needs no channel")

	_, err = Decode([]byte(`{"type":"voice_state_update","action":"join"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Decode([]byte(`{"type":"voice_state_update","channelId":"v1","action":"dance"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeDrinkBounds(t *testing.T) {
	_, err := Decode([]byte(`{"type":"voice_drink_update","channelId":"v1","count":-1}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = Decode([]byte(`{"type":"voice_drink_update","channelId":"v1","count":3}`))
	assert.NoError(t, err)
}

func TestEncodePutsTypeFirst(t *testing.T) {
	f, err := Encode(MessageDeleted{MessageID: "m1", ChannelID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"message_deleted","messageId":"m1","channelId":"c1"}`, string(f))

	f, err = Encode(Pong{})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"pong"}`, string(f))
}

func TestEncodeVoiceStateKeepsEmptyRoster(t *testing.T) {
	f, err := Encode(VoiceState{ChannelID: "v1", Participants: []VoiceParticipant{}})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(f, &out))
	assert.Equal(t, "voice_state", out["type"])
	assert.Equal(t, []any{}, out["participants"])
}

func TestErrorFrame(t *testing.T) {
	assert.Equal(t, `{"type":"error","message":"nope"}`, string(ErrorFrame("nope")))
}

type recordingHandler struct {
	Handler
	got []string
}

func (h *recordingHandler) Ping(_ context.Context, c Caller, _ *Ping) {
	h.got = append(h.got, "ping:"+string(c.Conn))
}

func (h *recordingHandler) RoomKnock(_ context.Context, c Caller, ev *RoomKnock) {
	h.got = append(h.got, "knock:"+string(ev.ChannelID))
}

func TestDispatchRoutesToHandlerMethod(t *testing.T) {
	h := &recordingHandler{}
	c := Caller{Conn: "c1", UserID: "u1"}

	for _, raw := range []string{`{"type":"ping"}`, `{"type":"room_knock","channelId":"r1"}`} {
		ev, err := Decode([]byte(raw))
		require.NoError(t, err)
		ev.Dispatch(context.Background(), c, h)
	}
	assert.Equal(t, []string{"ping:c1", "knock:r1"}, h.got)
}
