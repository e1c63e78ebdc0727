package novix

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/novix-ai/novix/pkg/novix/agent"
	"github.com/novix-ai/novix/pkg/novix/config"
	"github.com/novix-ai/novix/pkg/novix/converters"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, app *App) *websocket.Conn {
	t.Helper()
	srv := newTestServer(t, app)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	frame, err := converters.NewFrame(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) converters.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame converters.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func expectFrame(t *testing.T, conn *websocket.Conn, event string, v interface{}) {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, event, frame.Event, "payload: %s", string(frame.Data))
	if v != nil {
		require.NoError(t, json.Unmarshal(frame.Data, v))
	}
}

func TestSocket_SessionFlow(t *testing.T) {
	app := newTestApp(t, greeter())
	conn := dial(t, app)

	sendFrame(t, conn, converters.EventCreateSession, nil)
	var created converters.SessionRef
	expectFrame(t, conn, converters.EventSessionCreated, &created)
	require.NotEmpty(t, created.SessionID)

	sendFrame(t, conn, converters.EventInteract, converters.InteractPayload{SessionID: created.SessionID, Message: "hello"})
	var resp converters.ResponsePayload
	expectFrame(t, conn, converters.EventResponse, &resp)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, agent.FragmentAgent, resp.Kind)
	var done converters.SessionRef
	expectFrame(t, conn, converters.EventInteractionDone, &done)
	assert.Equal(t, created.SessionID, done.SessionID)

	sendFrame(t, conn, converters.EventAddWallet, converters.AddWalletPayload{SessionID: created.SessionID, PrivateKey: keyOne})
	var added converters.WalletAdded
	expectFrame(t, conn, converters.EventWalletAdded, &added)
	assert.Equal(t, addressOne, added.Address)

	sendFrame(t, conn, converters.EventDeleteSession, converters.SessionRef{SessionID: created.SessionID})
	var deleted converters.MessagePayload
	expectFrame(t, conn, converters.EventSessionDeleted, &deleted)
	assert.Equal(t, "Session deleted", deleted.Message)
	assert.Equal(t, 0, app.Registry.Len())
}

func TestSocket_ToolFragmentsArriveInOrder(t *testing.T) {
	app := newTestApp(t, greeter())
	conn := dial(t, app)

	sendFrame(t, conn, converters.EventCreateSession, nil)
	var created converters.SessionRef
	expectFrame(t, conn, converters.EventSessionCreated, &created)

	sendFrame(t, conn, converters.EventInteract, converters.InteractPayload{SessionID: created.SessionID, Message: "find seo agents"})

	var first, second converters.ResponsePayload
	expectFrame(t, conn, converters.EventResponse, &first)
	expectFrame(t, conn, converters.EventResponse, &second)
	expectFrame(t, conn, converters.EventInteractionDone, nil)

	assert.Equal(t, agent.FragmentTool, first.Kind)
	assert.Equal(t, "search_agents", first.Tool)
	assert.Equal(t, "found them", second.Content)
}

func TestSocket_ErrorsKeepConnectionOpen(t *testing.T) {
	app := newTestApp(t, greeter())
	conn := dial(t, app)

	tests := []struct {
		name  string
		send  func()
		code  string
		event string
	}{
		{
			name: "malformed frame",
			send: func() {
				require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
			},
			code: apperrors.ErrCodeInvalidInput,
		},
		{
			name:  "unknown event",
			send:  func() { sendFrame(t, conn, "dance", nil) },
			code:  apperrors.ErrCodeInvalidInput,
			event: "dance",
		},
		{
			name: "interact unknown session",
			send: func() {
				sendFrame(t, conn, converters.EventInteract, converters.InteractPayload{SessionID: "nope", Message: "hello"})
			},
			code:  apperrors.ErrCodeSessionNotFound,
			event: converters.EventInteract,
		},
		{
			name: "interact without message",
			send: func() {
				sendFrame(t, conn, converters.EventInteract, converters.InteractPayload{SessionID: "nope"})
			},
			code:  apperrors.ErrCodeInvalidInput,
			event: converters.EventInteract,
		},
		{
			name: "delete unknown session",
			send: func() {
				sendFrame(t, conn, converters.EventDeleteSession, converters.SessionRef{SessionID: "nope"})
			},
			code:  apperrors.ErrCodeSessionNotFound,
			event: converters.EventDeleteSession,
		},
		{
			name: "add wallet to unknown session",
			send: func() {
				sendFrame(t, conn, converters.EventAddWallet, converters.AddWalletPayload{SessionID: "nope", PrivateKey: keyOne})
			},
			code:  apperrors.ErrCodeSessionNotFound,
			event: converters.EventAddWallet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()
			var payload converters.ErrorPayload
			expectFrame(t, conn, converters.EventError, &payload)
			assert.Equal(t, tt.code, payload.Code)
			assert.Equal(t, tt.event, payload.Event)
			assert.NotEmpty(t, payload.Message)
		})
	}

	// still usable
	sendFrame(t, conn, converters.EventCreateSession, nil)
	expectFrame(t, conn, converters.EventSessionCreated, nil)
}

func TestSocket_RateLimited(t *testing.T) {
	app := newTestApp(t, greeter(), func(s *config.Settings) {
		s.Socket.RateLimit = 0.001
		s.Socket.Burst = 1
	})
	conn := dial(t, app)

	sendFrame(t, conn, converters.EventCreateSession, nil)
	expectFrame(t, conn, converters.EventSessionCreated, nil)

	sendFrame(t, conn, converters.EventCreateSession, nil)
	var payload converters.ErrorPayload
	expectFrame(t, conn, converters.EventError, &payload)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, payload.Code)
	assert.Equal(t, 1, app.Registry.Len())
}

func TestSocket_RejectsForeignOrigin(t *testing.T) {
	app := newTestApp(t, greeter(), func(s *config.Settings) {
		s.Server.AllowedOrigins = []string{"https://novix.example"}
	})
	srv := newTestServer(t, app)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://elsewhere.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSocket_RejectedDuringShutdown(t *testing.T) {
	app := newTestApp(t, greeter())
	srv := newTestServer(t, app)
	require.NoError(t, app.Close())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
