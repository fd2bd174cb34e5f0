package service

import (
	"github.com/rs/zerolog/log"

	"github.com/telecare/signaling/internal/core/domain"
	"github.com/telecare/signaling/internal/core/port"
)

// Per-connection lifecycle. A connection joins at most one room and the
// only way out of it is closing the transport.
type connState int

const (
	stateConnected connState = iota
	stateJoined
)

type session struct {
	client port.Client
	state  connState
	roomID domain.RoomID
	userID domain.UserID
	name   string
}

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evJoin
	evSignal
	evChat
	evSnapshot
)

type event struct {
	kind   eventKind
	client port.Client // evConnect only
	connID domain.ConnID
	join   domain.JoinRoom
	signal domain.SignalMessage
	chat   domain.ChatMessage
	stats  chan<- Stats
}

// Stats is a point-in-time view of the relay, served on /stats.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Relay owns every connection session and the room registry. All state
// lives on a single goroutine draining one event channel, so join,
// signal and disconnect for the same room never interleave and the maps
// need no locking. Delivery is best effort: unknown recipients and
// failed writes are dropped, renegotiation is the peers' problem.
type Relay struct {
	registry *RoomRegistry
	sessions map[domain.ConnID]*session
	events   chan event
	quit     chan struct{}
}

func NewRelay(registry *RoomRegistry) *Relay {
	return &Relay{
		registry: registry,
		sessions: make(map[domain.ConnID]*session),
		events:   make(chan event),
		quit:     make(chan struct{}),
	}
}

// Connect registers a freshly accepted transport connection.
func (r *Relay) Connect(c port.Client) {
	r.enqueue(event{kind: evConnect, client: c, connID: c.ID()})
}

// Disconnect tears down the connection's session and, if it had joined
// a room, notifies the remaining members.
func (r *Relay) Disconnect(id domain.ConnID) {
	r.enqueue(event{kind: evDisconnect, connID: id})
}

// Join moves the connection into a room.
func (r *Relay) Join(id domain.ConnID, join domain.JoinRoom) {
	r.enqueue(event{kind: evJoin, connID: id, join: join})
}

// Signal relays a negotiation payload to one member of the sender's room.
func (r *Relay) Signal(id domain.ConnID, sig domain.SignalMessage) {
	r.enqueue(event{kind: evSignal, connID: id, signal: sig})
}

// Chat broadcasts a chat message to the sender's room peers.
func (r *Relay) Chat(id domain.ConnID, msg domain.ChatMessage) {
	r.enqueue(event{kind: evChat, connID: id, chat: msg})
}

// Snapshot reports current room and connection counts. It round-trips
// the event loop, so every event enqueued before it is reflected.
func (r *Relay) Snapshot() Stats {
	reply := make(chan Stats, 1)
	r.enqueue(event{kind: evSnapshot, stats: reply})
	select {
	case s := <-reply:
		return s
	case <-r.quit:
		return Stats{}
	}
}

func (r *Relay) enqueue(e event) {
	select {
	case r.events <- e:
	case <-r.quit:
	}
}

// Run drains the event channel until Stop. Callers start it once, in
// its own goroutine.
func (r *Relay) Run() {
	for {
		select {
		case <-r.quit:
			log.Info().Msg("Stopping relay. Disconnecting all clients.")
			for id, s := range r.sessions {
				if err := s.client.Close(); err != nil {
					log.Error().Err(err).Str("conn_id", id.String()).Msg("Error closing client connection")
				}
				delete(r.sessions, id)
			}
			return

		case e := <-r.events:
			switch e.kind {
			case evConnect:
				r.handleConnect(e.client)
			case evDisconnect:
				r.handleDisconnect(e.connID)
			case evJoin:
				r.handleJoin(e.connID, e.join)
			case evSignal:
				r.handleSignal(e.connID, e.signal)
			case evChat:
				r.handleChat(e.connID, e.chat)
			case evSnapshot:
				e.stats <- Stats{Rooms: r.registry.Rooms(), Connections: len(r.sessions)}
			}
		}
	}
}

// Stop shuts the relay down and closes every client connection.
func (r *Relay) Stop() {
	close(r.quit)
}

func (r *Relay) handleConnect(c port.Client) {
	r.sessions[c.ID()] = &session{client: c, state: stateConnected}
	log.Info().Int("count", len(r.sessions)).Str("conn_id", c.ID().String()).Msg("Client connected")
}

func (r *Relay) handleJoin(id domain.ConnID, join domain.JoinRoom) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	if s.state == stateJoined {
		log.Warn().Str("conn_id", id.String()).Str("room_id", s.roomID.String()).Msg("Join from an already joined connection, ignoring")
		return
	}
	if join.RoomID == "" || join.UserID == "" {
		log.Warn().Str("conn_id", id.String()).Msg("Malformed join, ignoring")
		return
	}

	s.state = stateJoined
	s.roomID = domain.RoomID(join.RoomID)
	s.userID = domain.UserID(join.UserID)
	s.name = join.Name
	r.registry.AddMember(s.roomID, s.client)

	log.Info().Str("conn_id", id.String()).Str("room_id", join.RoomID).Str("user_id", join.UserID).Msg("Client joined room")

	r.broadcast(r.registry.MembersExcept(s.roomID, id), domain.EventUserConnected, domain.Presence{
		ID:     id.String(),
		UserID: join.UserID,
		Name:   join.Name,
	})
}

func (r *Relay) handleSignal(id domain.ConnID, sig domain.SignalMessage) {
	s, ok := r.sessions[id]
	if !ok || s.state != stateJoined {
		log.Debug().Str("conn_id", id.String()).Msg("Signal from a roomless connection, dropping")
		return
	}

	target, ok := r.registry.Member(s.roomID, domain.ConnID(sig.To))
	if !ok || sig.To == id.String() {
		log.Debug().Str("conn_id", id.String()).Str("to", sig.To).Msg("Signal target not in room, dropping")
		return
	}

	// Stamp the sender's transport id; whatever the client put in
	// "from" is not trusted for routing replies.
	out := domain.SignalMessage{Signal: sig.Signal, From: id.String()}
	r.send(target, domain.EventSignal, out)
}

func (r *Relay) handleChat(id domain.ConnID, msg domain.ChatMessage) {
	s, ok := r.sessions[id]
	if !ok || s.state != stateJoined {
		log.Debug().Str("conn_id", id.String()).Msg("Chat from a roomless connection, dropping")
		return
	}
	r.broadcast(r.registry.MembersExcept(s.roomID, id), domain.EventChat, msg)
}

func (r *Relay) handleDisconnect(id domain.ConnID) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)

	if s.state != stateJoined {
		log.Info().Str("conn_id", id.String()).Msg("Client disconnected")
		return
	}

	// Fan-out set is the membership before removal; the notice goes out
	// after removal so no peer can signal back to the gone connection.
	peers := r.registry.MembersExcept(s.roomID, id)
	r.registry.RemoveMember(s.roomID, s.client)

	log.Info().Str("conn_id", id.String()).Str("room_id", s.roomID.String()).Msg("Client left room")

	r.broadcast(peers, domain.EventUserDisconnected, domain.Presence{
		ID:     id.String(),
		UserID: s.userID.String(),
		Name:   s.name,
	})
}

func (r *Relay) broadcast(peers []port.Client, eventName string, payload any) {
	env, err := domain.NewEnvelope(eventName, payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventName).Msg("Error encoding event")
		return
	}
	for _, p := range peers {
		if err := p.Send(env); err != nil {
			log.Error().Err(err).Str("conn_id", p.ID().String()).Msg("Error sending event")
		}
	}
}

func (r *Relay) send(target port.Client, eventName string, payload any) {
	env, err := domain.NewEnvelope(eventName, payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventName).Msg("Error encoding event")
		return
	}
	if err := target.Send(env); err != nil {
		log.Error().Err(err).Str("conn_id", target.ID().String()).Msg("Error sending event")
	}
}
