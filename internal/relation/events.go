package relation

import "github.com/vovakirdan/cloudsync/internal/core"

// Event is a bridge lifecycle change produced by Engine.Update.
type Event interface {
	relationEvent()
}

// BridgeCreated is emitted when a new bridge connects two platforms.
type BridgeCreated struct {
	ID      core.BridgeID
	LowerID core.PlatformID
	UpperID core.PlatformID
}

func (BridgeCreated) relationEvent() {}

// BridgeDestroyed is emitted when a bridge is removed.
type BridgeDestroyed struct {
	ID core.BridgeID
}

func (BridgeDestroyed) relationEvent() {}
