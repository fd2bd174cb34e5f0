package service

import (
	"github.com/telecare/signaling/internal/core/domain"
	"github.com/telecare/signaling/internal/core/port"
)

// RoomRegistry maps room ids to their current member connections. It
// holds non-owning references only; connection lifecycle belongs to the
// relay. Rooms are created on first join and dropped with the last
// member, so a room entry exists iff it has at least one member.
//
// The registry is not safe for concurrent use. The relay goroutine is
// its single owner.
type RoomRegistry struct {
	rooms map[domain.RoomID]map[domain.ConnID]port.Client
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[domain.RoomID]map[domain.ConnID]port.Client),
	}
}

// AddMember inserts c into roomID, creating the room entry if absent.
// Re-adding a member is a no-op.
func (r *RoomRegistry) AddMember(roomID domain.RoomID, c port.Client) {
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[domain.ConnID]port.Client)
		r.rooms[roomID] = members
	}
	members[c.ID()] = c
}

// RemoveMember removes c from roomID and drops the room entry once it
// is empty. Unknown rooms and non-members are a no-op.
func (r *RoomRegistry) RemoveMember(roomID domain.RoomID, c port.Client) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c.ID())
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Member looks up a single member of roomID by connection id.
func (r *RoomRegistry) Member(roomID domain.RoomID, id domain.ConnID) (port.Client, bool) {
	c, ok := r.rooms[roomID][id]
	return c, ok
}

// MembersExcept returns every member of roomID other than except. This
// is the broadcast fan-out set; it is empty for unknown rooms.
func (r *RoomRegistry) MembersExcept(roomID domain.RoomID, except domain.ConnID) []port.Client {
	members := r.rooms[roomID]
	peers := make([]port.Client, 0, len(members))
	for id, c := range members {
		if id == except {
			continue
		}
		peers = append(peers, c)
	}
	return peers
}

// Contains reports whether roomID currently has any members.
func (r *RoomRegistry) Contains(roomID domain.RoomID) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// Rooms returns the number of non-empty rooms.
func (r *RoomRegistry) Rooms() int {
	return len(r.rooms)
}
