package domain

import (
	"encoding/json"
)

// Wire event names, shared by both directions of the websocket.
const (
	EventJoinRoom         = "join-room"
	EventSignal           = "signal"
	EventChat             = "chat-message"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
)

// Envelope is the frame every websocket message travels in.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload for sending.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// JoinRoom is the join-room request payload.
type JoinRoom struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// SignalMessage carries an opaque negotiation payload (SDP blob, ICE
// candidate) between two peers. The relay never parses Signal. To is the
// target connection id; From is stamped by the relay on the way out.
type SignalMessage struct {
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from,omitempty"`
	To     string          `json:"to,omitempty"`
}

// ChatMessage is relayed verbatim to room peers, never stored.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Presence announces a membership change. ID is the transport connection
// id peers use as a signaling target; UserID is the application user id.
type Presence struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}
