package core

// PlatformID identifies a live platform for the whole session.
// IDs are assigned in increasing order starting at 1 and never reused.
type PlatformID uint32

// BridgeID identifies a bridge between two platforms.
type BridgeID uint32
