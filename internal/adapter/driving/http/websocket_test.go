package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/telecare/signaling/internal/adapter/driving/http"
	"github.com/telecare/signaling/internal/core/domain"
	"github.com/telecare/signaling/internal/core/service"
)

func startServer(t *testing.T, allowedOrigins []string) *httptest.Server {
	t.Helper()
	relay := service.NewRelay(service.NewRoomRegistry())
	go relay.Run()

	srv := httptest.NewServer(handler.NewHandler(relay, allowedOrigins).NewRouter())
	t.Cleanup(func() {
		srv.Close()
		relay.Stop()
	})
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	env, err := domain.NewEnvelope(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env domain.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

// waitForStats polls /stats until the relay reports want. Joins from
// different sockets reach the relay in any order, so tests settle the
// loop this way before asserting on broadcasts.
func waitForStats(t *testing.T, srv *httptest.Server, want service.Stats) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var got service.Stats
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return false
		}
		return got == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCallSession(t *testing.T) {
	srv := startServer(t, nil)

	alice := dialWS(t, srv)
	writeEvent(t, alice, domain.EventJoinRoom, domain.JoinRoom{RoomID: "appt-42", UserID: "alice"})
	waitForStats(t, srv, service.Stats{Rooms: 1, Connections: 1})

	bob := dialWS(t, srv)
	writeEvent(t, bob, domain.EventJoinRoom, domain.JoinRoom{RoomID: "appt-42", UserID: "bob", Name: "Dr. Bob"})
	waitForStats(t, srv, service.Stats{Rooms: 1, Connections: 2})

	// Alice, already in the room, learns bob's routing id.
	env := readEvent(t, alice)
	require.Equal(t, domain.EventUserConnected, env.Event)
	var joined domain.Presence
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, "bob", joined.UserID)
	assert.Equal(t, "Dr. Bob", joined.Name)
	require.NotEmpty(t, joined.ID)

	// Offer goes point-to-point to bob, stamped with alice's id.
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	writeEvent(t, alice, domain.EventSignal, domain.SignalMessage{Signal: offer, To: joined.ID})

	env = readEvent(t, bob)
	require.Equal(t, domain.EventSignal, env.Event)
	var sig domain.SignalMessage
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.JSONEq(t, string(offer), string(sig.Signal))
	require.NotEmpty(t, sig.From)
	assert.NotEqual(t, joined.ID, sig.From)

	// Bob answers back over the stamped id.
	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	writeEvent(t, bob, domain.EventSignal, domain.SignalMessage{Signal: answer, To: sig.From})

	env = readEvent(t, alice)
	require.Equal(t, domain.EventSignal, env.Event)
	var back domain.SignalMessage
	require.NoError(t, json.Unmarshal(env.Data, &back))
	assert.JSONEq(t, string(answer), string(back.Signal))
	assert.Equal(t, joined.ID, back.From)

	// Chat overlay reaches the peer, not the sender.
	writeEvent(t, bob, domain.EventChat, domain.ChatMessage{Sender: "Dr. Bob", Text: "how are you feeling?"})

	env = readEvent(t, alice)
	require.Equal(t, domain.EventChat, env.Event)
	var msg domain.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "how are you feeling?", msg.Text)

	// Hanging up notifies the remaining peer.
	bob.Close()

	env = readEvent(t, alice)
	require.Equal(t, domain.EventUserDisconnected, env.Event)
	var left domain.Presence
	require.NoError(t, json.Unmarshal(env.Data, &left))
	assert.Equal(t, joined.ID, left.ID)
	assert.Equal(t, "bob", left.UserID)
}

func TestHealthEndpoint(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOriginAllowList(t *testing.T) {
	srv := startServer(t, []string{"https://app.example.com"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://app.example.com"}})
	require.NoError(t, err)
	conn.Close()
}
