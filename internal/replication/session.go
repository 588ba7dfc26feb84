package replication

import (
	"slices"
	"sync"

	"github.com/vovakirdan/cloudsync/internal/protocol"
)

// SessionHandle is the transport-neutral interface for talking to one observer.
// It lets the host broadcast without depending on websockets or SSH.
type SessionHandle interface {
	// ID returns the unique session identifier.
	ID() SessionID

	// Send queues a message for delivery and reports whether it was accepted.
	// Must be non-blocking; the tick loop never waits on an observer.
	Send(msg protocol.Message) bool

	// Done returns a channel that closes when the session ends.
	Done() <-chan struct{}
}

// ChannelSession is a SessionHandle backed by a buffered channel.
// The transport drains Messages() and writes them to the wire.
type ChannelSession struct {
	id       SessionID
	messages chan protocol.Message
	done     chan struct{}
	doneOnce sync.Once
}

// NewChannelSession creates a new channel-based session handle.
// bufferSize controls how many messages may queue before backpressure kicks in.
func NewChannelSession(id SessionID, bufferSize int) *ChannelSession {
	if bufferSize < 1 {
		bufferSize = 64 // Default buffer size
	}
	return &ChannelSession{
		id:       id,
		messages: make(chan protocol.Message, bufferSize),
		done:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *ChannelSession) ID() SessionID {
	return s.id
}

// Send queues a message.
// When the buffer is full an unreliable message is dropped. A reliable one
// cannot be dropped without desyncing the observer, so the session is closed
// instead and the observer has to reconnect for a fresh snapshot.
func (s *ChannelSession) Send(msg protocol.Message) bool {
	select {
	case <-s.done:
		// Session is closed, don't send
		return false
	default:
	}

	select {
	case s.messages <- msg:
		return true
	default:
	}

	if msg.Reliable() {
		s.Close()
	}
	return false
}

// Messages returns the channel to receive queued messages from.
func (s *ChannelSession) Messages() <-chan protocol.Message {
	return s.messages
}

// Done returns the done channel.
func (s *ChannelSession) Done() <-chan struct{} {
	return s.done
}

// Close marks the session as done.
// Safe to call multiple times.
func (s *ChannelSession) Close() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// SessionRegistry tracks active sessions.
// Thread-safe for concurrent access.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[SessionID]SessionHandle
}

// NewSessionRegistry creates a new session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[SessionID]SessionHandle),
	}
}

// Register adds a session to the registry.
func (r *SessionRegistry) Register(session SessionHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID()] = session
}

// Unregister removes a session from the registry.
func (r *SessionRegistry) Unregister(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get retrieves a session by ID.
func (r *SessionRegistry) Get(id SessionID) (SessionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns the registered sessions ordered by ID, so broadcasts reach
// observers in a stable order.
func (r *SessionRegistry) All() []SessionHandle {
	r.mu.RLock()
	out := make([]SessionHandle, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b SessionHandle) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return out
}
