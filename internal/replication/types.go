// Package replication runs the authoritative side: it owns the world
// simulator and the relation engine, turns their events into wire messages,
// and keeps every connected observer in sync.
package replication

import (
	"errors"
	"time"

	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/protocol"
)

// ErrHostStopped is returned when sending to a host that has shut down.
var ErrHostStopped = errors.New("replication: host stopped")

// SessionID uniquely identifies an observer connection (e.g. "conn-3").
type SessionID string

// HostMessage is an inbound request for the host. Messages are queued and
// applied at the start of the next tick, never mid-tick.
type HostMessage interface {
	hostMessage()
}

// ConnectMsg registers a new observer. The host answers with a welcome and a
// full snapshot addressed to that observer only.
type ConnectMsg struct {
	Session SessionHandle
}

func (ConnectMsg) hostMessage() {}

// DisconnectMsg tears down an observer's bookkeeping. World state is untouched.
type DisconnectMsg struct {
	SessionID SessionID
}

func (DisconnectMsg) hostMessage() {}

// SetAnchorMsg moves the anchor the simulator centers on. The last writer wins.
type SetAnchorMsg struct {
	SessionID SessionID // Empty for local callers
	Pos       core.Vec2
}

func (SetAnchorMsg) hostMessage() {}

// OccupyMsg reports whether something rests on a platform.
type OccupyMsg struct {
	PlatformID core.PlatformID
	Occupied   bool
}

func (OccupyMsg) hostMessage() {}

// ProtectMsg excludes a platform from automatic despawn (or re-includes it).
type ProtectMsg struct {
	PlatformID core.PlatformID
	Protected  bool
}

func (ProtectMsg) hostMessage() {}

// ForceMsg adds or removes an "always connect" override for a pair.
type ForceMsg struct {
	A, B  core.PlatformID
	Force bool
}

func (ForceMsg) hostMessage() {}

// PlaceMsg creates a platform at an exact spot, bypassing placement rules.
type PlaceMsg struct {
	Variant  int
	Pos      core.Vec2
	Scale    float64
	Velocity float64
}

func (PlaceMsg) hostMessage() {}

// RemoveMsg destroys a platform explicitly.
type RemoveMsg struct {
	PlatformID core.PlatformID
}

func (RemoveMsg) hostMessage() {}

// SessionRecord is the per-connection ledger entry written when an observer leaves.
type SessionRecord struct {
	RunID        string
	ConnID       string
	JoinedAt     time.Time
	LastFullSync time.Time
	LeftAt       time.Time
	Sent         uint64
	Dropped      uint64
}

// SessionRecorder persists observer session history.
// This lets the host record sessions without depending on the storage package.
type SessionRecorder interface {
	SaveSession(rec SessionRecord) error
}

// Journal receives every broadcast message in order.
type Journal interface {
	Append(tick uint64, msg protocol.Message) error
}

// Stats is a point-in-time summary of the host, for logs and status lines.
type Stats struct {
	RunID     string
	Tick      uint64
	Anchor    core.Vec2
	Platforms int
	Bridges   int
	Sessions  int
	Sent      uint64
	Dropped   uint64
}
