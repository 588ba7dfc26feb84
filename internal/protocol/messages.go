// Package protocol defines the wire messages exchanged between the
// authoritative host and its observers, and their JSON encoding.
package protocol

import (
	"github.com/vovakirdan/cloudsync/internal/core"
)

// Version is bumped on any incompatible wire change.
const Version = 1

// Message types.
const (
	TypeWelcome         = "welcome"
	TypeSpawnPlatform   = "spawn_platform"
	TypeDespawnPlatform = "despawn_platform"
	TypeSyncPositions   = "sync_positions"
	TypeSpawnBridge     = "spawn_bridge"
	TypeDespawnBridge   = "despawn_bridge"
	TypeSnapshot        = "snapshot"
	TypeSetAnchor       = "set_anchor"
)

// Message is any wire message.
type Message interface {
	// Kind returns the message type tag.
	Kind() string
	// Reliable reports whether the message must travel on the reliable,
	// ordered channel. Losing an unreliable message is harmless because a
	// later one supersedes it.
	Reliable() bool
	// stamp returns a copy with the type tag filled in.
	stamp() Message
}

// Vec is a position on the wire. Coordinates are float32.
type Vec [2]float32

// VecFrom narrows a world position to wire precision.
func VecFrom(v core.Vec2) Vec {
	return Vec{float32(v.X), float32(v.Y)}
}

// Vec2 widens a wire position.
func (v Vec) Vec2() core.Vec2 {
	return core.V(float64(v[0]), float64(v[1]))
}

// VariantInfo describes one entry of the platform catalog.
type VariantInfo struct {
	Name      string  `json:"name"`
	Width     float32 `json:"width"`
	Height    float32 `json:"height"`
	NoBridges bool    `json:"no_bridges,omitempty"`
}

// PlatformState is the full description of one platform.
type PlatformState struct {
	ID      uint32  `json:"id"`
	Variant int     `json:"variant"`
	Pos     Vec     `json:"pos"`
	Scale   float32 `json:"scale"`
	Vel     float32 `json:"vel"`
}

// BridgeState is the full description of one bridge.
type BridgeState struct {
	BridgeID uint32 `json:"bridge_id"`
	LowerID  uint32 `json:"lower_id"`
	UpperID  uint32 `json:"upper_id"`
}

// Server -> Client. First message on every connection.
type Welcome struct {
	Type                string        `json:"type"`
	ProtocolVersion     int           `json:"protocol_version"`
	ConnID              string        `json:"conn_id"`
	RunID               string        `json:"run_id"`
	Variants            []VariantInfo `json:"variants"`
	BridgeWidth         float32       `json:"bridge_width"`
	CorrectionThreshold float32       `json:"correction_threshold"`
	Blend               float32       `json:"blend"`
}

func (Welcome) Kind() string     { return TypeWelcome }
func (Welcome) Reliable() bool   { return true }
func (m Welcome) stamp() Message { m.Type = TypeWelcome; return m }

// Server -> Client.
type SpawnPlatform struct {
	Type string `json:"type"`
	PlatformState
}

func (SpawnPlatform) Kind() string     { return TypeSpawnPlatform }
func (SpawnPlatform) Reliable() bool   { return true }
func (m SpawnPlatform) stamp() Message { m.Type = TypeSpawnPlatform; return m }

// Server -> Client.
type DespawnPlatform struct {
	Type string `json:"type"`
	ID   uint32 `json:"id"`
}

func (DespawnPlatform) Kind() string     { return TypeDespawnPlatform }
func (DespawnPlatform) Reliable() bool   { return true }
func (m DespawnPlatform) stamp() Message { m.Type = TypeDespawnPlatform; return m }

// Server -> Client. Periodic position correction for every live platform.
// Vels is optional; when present it is index-aligned with IDs.
type SyncPositions struct {
	Type      string    `json:"type"`
	IDs       []uint32  `json:"ids"`
	Positions []Vec     `json:"positions"`
	Vels      []float32 `json:"vels,omitempty"`
}

func (SyncPositions) Kind() string     { return TypeSyncPositions }
func (SyncPositions) Reliable() bool   { return false }
func (m SyncPositions) stamp() Message { m.Type = TypeSyncPositions; return m }

// Server -> Client.
type SpawnBridge struct {
	Type string `json:"type"`
	BridgeState
}

func (SpawnBridge) Kind() string     { return TypeSpawnBridge }
func (SpawnBridge) Reliable() bool   { return true }
func (m SpawnBridge) stamp() Message { m.Type = TypeSpawnBridge; return m }

// Server -> Client.
type DespawnBridge struct {
	Type     string `json:"type"`
	BridgeID uint32 `json:"bridge_id"`
}

func (DespawnBridge) Kind() string     { return TypeDespawnBridge }
func (DespawnBridge) Reliable() bool   { return true }
func (m DespawnBridge) stamp() Message { m.Type = TypeDespawnBridge; return m }

// Server -> Client. Unicast to a newly joined connection only.
type Snapshot struct {
	Type      string          `json:"type"`
	Tick      uint64          `json:"tick"`
	Platforms []PlatformState `json:"platforms"`
	Bridges   []BridgeState   `json:"bridges"`
}

func (Snapshot) Kind() string     { return TypeSnapshot }
func (Snapshot) Reliable() bool   { return true }
func (m Snapshot) stamp() Message { m.Type = TypeSnapshot; return m }

// Client -> Server. Moves the observer's anchor.
type SetAnchor struct {
	Type string `json:"type"`
	Pos  Vec    `json:"pos"`
}

func (SetAnchor) Kind() string     { return TypeSetAnchor }
func (SetAnchor) Reliable() bool   { return false }
func (m SetAnchor) stamp() Message { m.Type = TypeSetAnchor; return m }
