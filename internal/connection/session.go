package connection

import (
	"errors"
	"sync"
)

// ErrSessionClosed is returned when an action references a session that has
// already been unregistered.
var ErrSessionClosed = errors.New("connection: session closed")

// Session is a live client endpoint. The manager pushes outbound frames into
// the buffered send channel; the transport layer drains Outbound until Done
// is closed. Room membership is tracked by the Manager, never on the session
// itself, so the membership maps have a single owner.
type Session struct {
	ID    string
	Owner string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(id, owner string, buffer int) *Session {
	return &Session{
		ID:    id,
		Owner: owner,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
	}
}

// Outbound is the stream of frames to write to the client.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Done is closed when the session is unregistered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
