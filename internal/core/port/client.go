package port

import "github.com/telecare/signaling/internal/core/domain"

// Client is one connected peer as the relay sees it. The transport
// adapter implements it; tests substitute their own.
type Client interface {
	ID() domain.ConnID
	Send(env domain.Envelope) error
	Close() error
}
