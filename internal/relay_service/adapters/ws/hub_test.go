package ws_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanrelay/chanrelay/internal/relay_service/adapters/ws"
	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	// Registration happens on the server side after the handshake; give the
	// handler a moment before broadcasting.
	time.Sleep(100 * time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(payload, &f))
	return f
}

func TestHub_BroadcastsToAllViewers(t *testing.T) {
	hub := ws.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()
	defer hub.Shutdown()

	first := dialHub(t, server)
	second := dialHub(t, server)

	msg := domain.NewMessage("ext-1", "123@c.us", "hello", false, false, domain.StatusPublished)
	hub.MessageCreated(msg)

	for _, conn := range []*websocket.Conn{first, second} {
		f := readFrame(t, conn)
		assert.Equal(t, "message.new", f.Event)

		var got domain.Message
		require.NoError(t, json.Unmarshal(f.Data, &got))
		assert.Equal(t, "ext-1", got.ExternalID)
		assert.Equal(t, "hello", got.Body)
	}
}

func TestHub_DeletedAndStatusFrames(t *testing.T) {
	hub := ws.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()
	defer hub.Shutdown()

	conn := dialHub(t, server)

	hub.MessageDeleted("ext-1")
	f := readFrame(t, conn)
	assert.Equal(t, "message.deleted", f.Event)
	assert.JSONEq(t, `{"id":"ext-1"}`, string(f.Data))

	hub.MessageStatusUpdated("ext-1", domain.StatusRead)
	f = readFrame(t, conn)
	assert.Equal(t, "message.status", f.Event)
	assert.JSONEq(t, `{"id":"ext-1","status":"read"}`, string(f.Data))
}

func TestHub_BroadcastWithoutViewersDoesNotBlock(t *testing.T) {
	hub := ws.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer hub.Shutdown()

	done := make(chan struct{})
	go func() {
		hub.MessageDeleted("ext-1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked with no connected viewers")
	}
}
