package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWSServer(t *testing.T, hub *Hub, keys ...string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	accepted := make(map[string]bool, len(keys))
	for _, k := range keys {
		accepted[k] = true
	}
	auth := AuthorizerFunc(func(_ context.Context, credential string) error {
		if !accepted[credential] {
			return ErrUnauthorized
		}
		return nil
	})

	router := gin.New()
	router.GET("/ws/:client_id", WSHandler(hub, auth))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialTestWS(t *testing.T, srv *httptest.Server, path, key string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if key != "" {
		header.Set("Authorization", key)
	}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := DecodeEnvelope(data)
	require.NoError(t, err)
	return env
}

func TestWSHandler_AuthorizedHandshake(t *testing.T) {
	hub := newTestHub(t, Options{HeartbeatInterval: 30 * time.Second})
	srv := setupWSServer(t, hub, "good-key")

	conn := dialTestWS(t, srv, "/ws/12?name=frank", "good-key")

	ini, ok := readEnvelope(t, conn).(*Initialize)
	require.True(t, ok)
	assert.Equal(t, 30.0, ini.HeartbeatInterval)

	require.Eventually(t, func() bool { _, ok := hub.Get(12); return ok }, time.Second, 5*time.Millisecond)
	s, _ := hub.Session(12)
	assert.Equal(t, "frank", s.DisplayName())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":2}`)))
	assert.IsType(t, &HeartbeatConfirm{}, readEnvelope(t, conn))

	require.NoError(t, hub.Send(12, "pushed"))
	sm, ok := readEnvelope(t, conn).(*SendMessage)
	require.True(t, ok)
	assert.JSONEq(t, `"pushed"`, string(sm.Message))

	// a client-side close ends the read loop and unregisters the session
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWSHandler_RejectsBadCredential(t *testing.T) {
	hub := newTestHub(t, Options{})
	srv := setupWSServer(t, hub, "good-key")

	for _, key := range []string{"", "wrong-key"} {
		conn := dialTestWS(t, srv, "/ws/1", key)

		assert.IsType(t, &Close{}, readEnvelope(t, conn))

		_, _, err := conn.ReadMessage()
		require.Error(t, err)
		assert.True(t, websocket.IsCloseError(err, CloseUnauthorized), "got %v", err)
	}
	assert.Equal(t, 0, hub.Count())
}

func TestWSHandler_InvalidClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newTestHub(t, Options{})

	router := gin.New()
	router.GET("/ws/:client_id", WSHandler(hub, nil))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ws/not-a-number", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "client_id must be an integer")
}
