package observer

import (
	"sync"

	"github.com/vovakirdan/cloudsync/internal/protocol"
)

// Inbox queues decoded messages from the network goroutine until the local
// tick drains them into a Mirror.
type Inbox struct {
	ch        chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewInbox creates an inbox holding up to size pending messages.
func NewInbox(size int) *Inbox {
	if size < 1 {
		size = 256
	}
	return &Inbox{
		ch:   make(chan protocol.Message, size),
		done: make(chan struct{}),
	}
}

// Push queues a message, waiting while the inbox is full. It reports false
// once the inbox is closed. Messages are never dropped: the network reader
// stalls instead, which pushes back on the connection.
func (i *Inbox) Push(msg protocol.Message) bool {
	select {
	case <-i.done:
		return false
	default:
	}
	select {
	case i.ch <- msg:
		return true
	case <-i.done:
		return false
	}
}

// Drain applies every queued message to m and returns how many were applied.
func (i *Inbox) Drain(m *Mirror) int {
	n := 0
	for {
		select {
		case msg := <-i.ch:
			m.Apply(msg)
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued messages.
func (i *Inbox) Len() int {
	return len(i.ch)
}

// Close stops accepting messages. Safe to call multiple times.
func (i *Inbox) Close() {
	i.closeOnce.Do(func() {
		close(i.done)
	})
}

// Done returns a channel closed by Close.
func (i *Inbox) Done() <-chan struct{} {
	return i.done
}
