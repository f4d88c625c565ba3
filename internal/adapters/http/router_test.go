package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/adapters/signal"
	"github.com/dkeye/hearth/internal/adapters/store/memory"
	"github.com/dkeye/hearth/internal/app/gateway"
	"github.com/dkeye/hearth/internal/app/orch"
	"github.com/dkeye/hearth/internal/config"
	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	srv *httptest.Server
	gw  *gateway.Gateway
	ctl *signal.SignalWSController
}

// newEnv serves the full stack over a memory store. olga owns server s1,
// alice is a member.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.New()
	for _, u := range []domain.User{
		{ID: "olga", Username: "olga"},
		{ID: "alice", Username: "alice"},
	} {
		require.NoError(t, store.CreateUser(ctx, u))
		require.NoError(t, store.IssueToken(ctx, u.ID, string(u.ID)+"-token"))
	}
	require.NoError(t, store.CreateServer(ctx, domain.Server{ID: "s1", Name: "Hearth", OwnerID: "olga"}))
	require.NoError(t, store.AddMember(ctx, domain.Member{ServerID: "s1", UserID: "alice", Role: domain.RoleMember}))
	require.NoError(t, store.CreateChannel(ctx, domain.Channel{ID: "general", ServerID: "s1", Name: "general", Kind: domain.ChannelText, Persistent: true}))

	gw := gateway.New(gateway.Options{})
	o := orch.New(gw, store)
	ctl := signal.NewSignalWSController(ctx, o, signal.Options{})
	srv := httptest.NewServer(SetupRouter(&config.Config{Mode: "test", Secret: "test-secret"}, o, ctl))
	t.Cleanup(func() {
		gw.Close()
		srv.Close()
		cancel()
		ctl.Wait()
	})
	return &env{srv: srv, gw: gw, ctl: ctl}
}

func (e *env) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws?token=" + token
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (e *env) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// readUntil returns the next frame of type typ, skipping everything else.
func readUntil(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var ev map[string]any
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev["type"] == typ {
			return ev
		}
	}
}

func writeEvent(t *testing.T, ws *websocket.Conn, ev map[string]any) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp := e.request(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodGet, "/api/voice/general", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing token", decodeBody(t, resp)["error"])

	resp = e.request(t, http.MethodGet, "/api/voice/general", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid token", decodeBody(t, resp)["error"])
}

func TestWebSocketRequiresToken(t *testing.T) {
	e := newEnv(t)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketReadyAndMessage(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, "alice-token")

	ready := readUntil(t, ws, "ready")
	connID, _ := ready["connectionId"].(string)
	require.NotEmpty(t, connID)
	assert.Equal(t, "alice", ready["user"].(map[string]any)["id"])

	writeEvent(t, ws, map[string]any{"type": "subscribe_channel", "channelId": "general"})
	require.Eventually(t, func() bool {
		return e.gw.IsSubscribedToChannel(core.ConnectionID(connID), "general")
	}, 5*time.Second, 10*time.Millisecond)

	writeEvent(t, ws, map[string]any{"type": "send_message", "channelId": "general", "content": "hello"})
	msg := readUntil(t, ws, "message")
	body := msg["message"].(map[string]any)
	assert.Equal(t, "hello", body["content"])
	assert.Equal(t, "general", body["channelId"])
}

func TestShutdownDrainsConnections(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, "alice-token")
	readUntil(t, ws, "ready")
	require.Equal(t, 1, e.gw.SessionCount())

	e.gw.Close()
	e.ctl.Wait()
	assert.Zero(t, e.gw.SessionCount(), "disconnect ran before Wait returned")

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws?token=alice-token"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestWebSocketBadFrames(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, "alice-token")
	readUntil(t, ws, "ready")

	writeEvent(t, ws, map[string]any{"type": "no_such_event"})
	assert.Equal(t, "unknown event type", readUntil(t, ws, "error")["message"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "malformed frame", readUntil(t, ws, "error")["message"])

	writeEvent(t, ws, map[string]any{"type": "ping"})
	readUntil(t, ws, "pong")
}

func TestRenameServerBroadcasts(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, "alice-token")
	readUntil(t, ws, "ready")

	resp := e.request(t, http.MethodPatch, "/api/servers/s1", "olga-token", map[string]any{"name": "Fireplace"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev := readUntil(t, ws, "server_updated")
	assert.Equal(t, "Fireplace", ev["server"].(map[string]any)["name"])
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodPatch, "/api/servers/s1", "alice-token", map[string]any{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.request(t, http.MethodDelete, "/api/channels/nope", "olga-token", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.request(t, http.MethodPost, "/api/servers/s1/channels", "olga-token", map[string]any{"name": "x", "kind": "video"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.request(t, http.MethodPost, "/api/dms", "alice-token", map[string]any{"userId": "alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAndDeleteChannel(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodPost, "/api/servers/s1/channels", "olga-token", map[string]any{"name": "news", "kind": "text", "persistent": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := decodeBody(t, resp)["id"].(string)
	require.NotEmpty(t, id)

	resp = e.request(t, http.MethodDelete, "/api/channels/"+id, "olga-token", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSessionCookie(t *testing.T) {
	e := newEnv(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	post := func(path string, body any) *http.Response {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		resp, err := client.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}
	get := func(path string) int {
		resp, err := client.Get(e.srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, post("/api/session", map[string]any{"token": "wrong"}).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get("/api/voice/general"))

	resp := post("/api/session", map[string]any{"token": "alice-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/voice/general"))

	req, err := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/session", nil)
	require.NoError(t, err)
	out, err := client.Do(req)
	require.NoError(t, err)
	_ = out.Body.Close()
	assert.Equal(t, http.StatusNoContent, out.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get("/api/voice/general"))
}
