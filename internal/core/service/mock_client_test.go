package service_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/telecare/signaling/internal/core/domain"
)

// mockClient implements port.Client without a live socket. Everything
// the relay sends lands in recv.
type mockClient struct {
	id   domain.ConnID
	recv chan domain.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

func newMockClient(id string) *mockClient {
	return &mockClient{
		id:     domain.ConnID(id),
		recv:   make(chan domain.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (c *mockClient) ID() domain.ConnID {
	return c.id
}

func (c *mockClient) Send(env domain.Envelope) error {
	c.recv <- env
	return nil
}

func (c *mockClient) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *mockClient) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func recvEvent(t *testing.T, c *mockClient) domain.Envelope {
	t.Helper()
	select {
	case env := <-c.recv:
		return env
	case <-time.After(time.Second):
		t.Fatalf("client %s: timed out waiting for event", c.id)
		return domain.Envelope{}
	}
}

// assertNoEvent checks the client's inbox is empty. Callers flush the
// relay loop first (Snapshot round-trips it) so there is nothing in
// flight.
func assertNoEvent(t *testing.T, c *mockClient) {
	t.Helper()
	select {
	case env := <-c.recv:
		t.Fatalf("client %s: unexpected event %q", c.id, env.Event)
	default:
	}
}

func decodePayload[T any](t *testing.T, env domain.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decoding %q payload: %v", env.Event, err)
	}
	return v
}
