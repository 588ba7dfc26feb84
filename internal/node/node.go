// Package node wraps the participant roles behind one tick entry point.
// The role is fixed at construction and dispatched once at the top of Tick.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/observer"
	"github.com/vovakirdan/cloudsync/internal/replication"
)

// ErrRole is returned when an operation does not apply to a node's role.
var ErrRole = errors.New("node: operation not available for role")

// Role selects what a participant runs.
type Role int

const (
	Authoritative Role = iota // Host only
	Observer                  // Mirror fed from the network only
	Standalone                // Host and a local mirror in one process
)

func (r Role) String() string {
	switch r {
	case Authoritative:
		return "authoritative"
	case Observer:
		return "observer"
	case Standalone:
		return "standalone"
	default:
		return "unknown"
	}
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "authoritative", "host", "server":
		return Authoritative, nil
	case "observer", "client":
		return Observer, nil
	case "standalone", "local":
		return Standalone, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrRole, s)
}

// AnchorSender forwards anchor moves to the authoritative side.
type AnchorSender interface {
	SendAnchor(pos core.Vec2) error
}

// Node is one participant.
type Node struct {
	role   Role
	host   *replication.Host
	mirror *observer.Mirror
	inbox  *observer.Inbox
	local  *replication.ChannelSession // Standalone loopback
	sender AnchorSender
	anchor core.Vec2
	closer func()
}

// NewAuthoritative wraps a host.
func NewAuthoritative(host *replication.Host) *Node {
	return &Node{role: Authoritative, host: host, closer: host.Stop}
}

// NewObserver creates an observer node fed by inbox. Anchor moves go to sender.
func NewObserver(inbox *observer.Inbox, sender AnchorSender) *Node {
	return &Node{
		role:   Observer,
		mirror: observer.NewMirror(observer.Options{}),
		inbox:  inbox,
		sender: sender,
		closer: inbox.Close,
	}
}

// NewStandalone runs a private host with a local mirror attached through an
// in-process session. It is the fallback when no server is reachable.
func NewStandalone(opts replication.Options) (*Node, error) {
	host := replication.NewHost(opts)
	session := host.NewSession()
	if err := host.Connect(session); err != nil {
		return nil, fmt.Errorf("node: cannot attach local mirror: %w", err)
	}
	return &Node{
		role:   Standalone,
		host:   host,
		mirror: observer.NewMirror(observer.Options{}),
		local:  session,
		sender: hostAnchor{host: host, id: session.ID()},
		closer: host.Stop,
	}, nil
}

// NewLocalObserver attaches an observer to a host running in the same
// process, as the SSH view does. The pump goroutine exits when ctx is
// canceled or the session ends.
func NewLocalObserver(ctx context.Context, host *replication.Host, inboxSize int) (*Node, error) {
	session := host.NewSession()
	inbox := observer.NewInbox(inboxSize)
	if err := host.Connect(session); err != nil {
		return nil, fmt.Errorf("node: cannot connect observer: %w", err)
	}

	go func() {
		defer inbox.Close()
		for {
			select {
			case msg := <-session.Messages():
				if !inbox.Push(msg) {
					return
				}
			case <-session.Done():
				return
			case <-inbox.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	n := NewObserver(inbox, hostAnchor{host: host, id: session.ID()})
	n.closer = func() {
		inbox.Close()
		session.Close()
		_ = host.Disconnect(session.ID()) //nolint:errcheck // host may already be stopped
	}
	return n, nil
}

// Role returns the node's role.
func (n *Node) Role() Role {
	return n.role
}

// Host returns the authoritative host, if the role runs one.
func (n *Node) Host() (*replication.Host, error) {
	if n.host == nil {
		return nil, fmt.Errorf("%w: %s has no host", ErrRole, n.role)
	}
	return n.host, nil
}

// Mirror returns the local mirror, if the role keeps one.
func (n *Node) Mirror() (*observer.Mirror, error) {
	if n.mirror == nil {
		return nil, fmt.Errorf("%w: %s has no mirror", ErrRole, n.role)
	}
	return n.mirror, nil
}

// Anchor returns the last anchor this node asked for.
func (n *Node) Anchor() core.Vec2 {
	return n.anchor
}

// SetAnchor moves the anchor. Observers forward it to their host.
func (n *Node) SetAnchor(pos core.Vec2) error {
	n.anchor = pos
	switch n.role {
	case Authoritative:
		return n.host.Send(replication.SetAnchorMsg{Pos: pos})
	default:
		if n.sender == nil {
			return nil
		}
		return n.sender.SendAnchor(pos)
	}
}

// Tick advances the node by dt seconds.
func (n *Node) Tick(dt float64) {
	switch n.role {
	case Authoritative:
		n.host.Tick(dt)
	case Observer:
		n.inbox.Drain(n.mirror)
		n.mirror.Advance(dt)
	case Standalone:
		n.host.Tick(dt)
		n.mirror.Advance(dt)
		n.pumpLocal()
	}
}

// pumpLocal applies everything the host sent this tick. The mirror already
// advanced by dt, so fresh spawns land exactly where the host put them.
func (n *Node) pumpLocal() {
	for {
		select {
		case msg := <-n.local.Messages():
			n.mirror.Apply(msg)
		default:
			return
		}
	}
}

// Run drives an authoritative node's host until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	if n.role != Authoritative {
		return fmt.Errorf("%w: run requires %s, have %s", ErrRole, Authoritative, n.role)
	}
	return n.host.Run(ctx)
}

// Close releases the node's resources.
func (n *Node) Close() {
	if n.closer != nil {
		n.closer()
	}
}

type hostAnchor struct {
	host *replication.Host
	id   replication.SessionID
}

func (a hostAnchor) SendAnchor(pos core.Vec2) error {
	return a.host.Send(replication.SetAnchorMsg{SessionID: a.id, Pos: pos})
}
