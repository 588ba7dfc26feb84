package world

import "github.com/vovakirdan/cloudsync/internal/core"

// Event is a lifecycle change produced by a simulator tick.
type Event interface {
	worldEvent()
}

// PlatformCreated is emitted when a platform enters the world.
type PlatformCreated struct {
	ID       core.PlatformID
	Variant  int
	Pos      core.Vec2
	Scale    float64
	Velocity float64
}

func (PlatformCreated) worldEvent() {}

// PlatformDestroyed is emitted when a platform leaves the world.
type PlatformDestroyed struct {
	ID     core.PlatformID
	Reason DestroyReason
}

func (PlatformDestroyed) worldEvent() {}

// PlatformDestroyCanceled is emitted when a shrinking platform becomes
// occupied and its destroy animation starts reversing.
type PlatformDestroyCanceled struct {
	ID core.PlatformID
}

func (PlatformDestroyCanceled) worldEvent() {}

// DestroyReason describes why a platform was destroyed.
type DestroyReason int

const (
	DestroyOutOfRange DestroyReason = iota // Farther than the despawn radius
	DestroyShrunk                          // Destroy animation finished inside a blocking zone
	DestroyRemoved                         // Removed explicitly
)

func (r DestroyReason) String() string {
	switch r {
	case DestroyOutOfRange:
		return "out of range"
	case DestroyShrunk:
		return "shrunk"
	case DestroyRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
