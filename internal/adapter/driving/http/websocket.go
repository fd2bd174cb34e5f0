package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telecare/signaling/internal/core/domain"
	"github.com/telecare/signaling/internal/core/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Sized for SDP blobs.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == nil {
		// TODO: dev default, set SIGNAL_ALLOWED_ORIGINS in production
		return true
	}
	return h.allowedOrigins[r.Header.Get("Origin")]
}

// WSClient implements port.Client over a gorilla websocket connection.
// Sends go through a buffered channel drained by writePump, so the
// relay loop never blocks on a slow peer.
type WSClient struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan domain.Envelope

	closeOnce sync.Once
}

func (c *WSClient) ID() domain.ConnID {
	return c.id
}

func (c *WSClient) Send(env domain.Envelope) error {
	select {
	case c.send <- env:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *WSClient) Close() error {
	c.closeOnce.Do(func() { close(c.send) })
	return nil
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  maxMessageSize,
		WriteBufferSize: maxMessageSize,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := &WSClient{
		id:   domain.NewConnID(),
		conn: conn,
		send: make(chan domain.Envelope, sendBuffer),
	}

	l := log.With().Str("conn_id", client.id.String()).Logger()
	l.Info().Msg("New client connected")

	h.Relay.Connect(client)

	go client.writePump()
	client.readPump(h.Relay, l)
}

// readPump decodes inbound envelopes and feeds them to the relay. It
// runs on the handler goroutine and is the connection's single reader.
// A read error of any kind, graceful close included, ends the session.
func (c *WSClient) readPump(relay *service.Relay, l zerolog.Logger) {
	defer func() {
		l.Info().Msg("Client disconnected")
		relay.Disconnect(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env domain.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		switch env.Event {
		case domain.EventJoinRoom:
			var join domain.JoinRoom
			if err := json.Unmarshal(env.Data, &join); err != nil {
				l.Warn().Err(err).Msg("Bad join-room payload")
				continue
			}
			relay.Join(c.id, join)

		case domain.EventSignal:
			var sig domain.SignalMessage
			if err := json.Unmarshal(env.Data, &sig); err != nil {
				l.Warn().Err(err).Msg("Bad signal payload")
				continue
			}
			relay.Signal(c.id, sig)

		case domain.EventChat:
			var msg domain.ChatMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				l.Warn().Err(err).Msg("Bad chat payload")
				continue
			}
			relay.Chat(c.id, msg)

		default:
			l.Warn().Str("event", env.Event).Msg("Unknown event")
		}
	}
}

// writePump is the connection's single writer. It drains the send
// channel and keeps the connection alive with pings; the channel
// closing (relay shutdown) sends a close frame.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
