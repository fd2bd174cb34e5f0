package domain

import (
	"github.com/google/uuid"
)

// ConnID identifies one live transport connection. It is assigned at
// connect time and is the routing target peers put in a signal's "to"
// field.
type ConnID string

// RoomID is the caller-supplied call session identifier. The browser
// passes appointment document ids here, so it stays an opaque string.
type RoomID string

// UserID is the application-level participant identifier, supplied at
// join time and not validated.
type UserID string

func NewConnID() ConnID {
	return ConnID(uuid.New().String())
}

func (id ConnID) String() string {
	return string(id)
}

func (id RoomID) String() string {
	return string(id)
}

func (id UserID) String() string {
	return string(id)
}
