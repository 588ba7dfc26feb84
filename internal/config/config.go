// Package config provides YAML-based configuration loading and validation
// for the cloudsync service.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned (wrapped) when a configuration fails validation.
var ErrInvalid = errors.New("invalid config")

// Config is the complete service configuration.
type Config struct {
	World       WorldConfig       `yaml:"world"`
	Relation    RelationConfig    `yaml:"relation"`
	Replication ReplicationConfig `yaml:"replication"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
	View        ViewConfig        `yaml:"view"`
}

// Range is an inclusive [min, max] interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Point is a 2D coordinate in world units.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// WorldConfig defines how the simulator populates space around the anchor.
type WorldConfig struct {
	Seed            int64           `yaml:"seed"` // 0 = time based
	SpawnRadius     float64         `yaml:"spawn_radius"`
	DespawnRadius   float64         `yaml:"despawn_radius"`
	MaxPlatforms    int             `yaml:"max_platforms"`
	UpdateThreshold float64         `yaml:"update_threshold"` // Anchor travel needed before re-evaluating population
	MinSeparation   float64         `yaml:"min_separation"`
	Scale           Range           `yaml:"scale"`
	Speed           Range           `yaml:"speed"`
	MaxSpawnRetries int             `yaml:"max_spawn_retries"`
	ShrinkDuration  float64         `yaml:"shrink_duration"` // Seconds
	RestTolerance   float64         `yaml:"rest_tolerance"`  // How far above a platform top the anchor still counts as resting
	Variants        []VariantConfig `yaml:"variants"`
	ExclusionZones  []ZoneConfig    `yaml:"exclusion_zones"`
}

// VariantConfig is one entry of the fixed platform catalog.
type VariantConfig struct {
	Name      string  `yaml:"name"`
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	NoBridges bool    `yaml:"no_bridges"`
}

// ZoneConfig is an axis-aligned exclusion zone.
type ZoneConfig struct {
	Name     string `yaml:"name"`
	Min      Point  `yaml:"min"`
	Max      Point  `yaml:"max"`
	Blocking bool   `yaml:"blocking"` // Halts and shrinks platforms that drift in
}

// RelationConfig defines the bridge predicate.
type RelationConfig struct {
	MaxDistance    float64 `yaml:"max_distance"`
	MinVerticalGap float64 `yaml:"min_vertical_gap"`
	MaxVerticalGap float64 `yaml:"max_vertical_gap"`
	MaxBridges     int     `yaml:"max_bridges"`
	BridgeWidth    float64 `yaml:"bridge_width"`
}

// ReplicationConfig defines host timing and observer correction.
type ReplicationConfig struct {
	TickHz                int     `yaml:"tick_hz"`
	PositionSyncHz        float64 `yaml:"position_sync_hz"`
	CorrectionThreshold   float64 `yaml:"correction_threshold"`
	Blend                 float64 `yaml:"blend"` // 1.0 snaps, smaller values ease toward the authoritative position
	SessionBuffer         int     `yaml:"session_buffer"`
	SnapshotCompressBytes int     `yaml:"snapshot_compress_bytes"` // 0 disables compression
}

// ServerConfig defines the network surfaces.
type ServerConfig struct {
	Addr         string  `yaml:"addr"`
	Path         string  `yaml:"path"`
	SSHAddr      string  `yaml:"ssh_addr"` // Empty disables the SSH observer
	HostKeyPath  string  `yaml:"host_key_path"`
	AnchorRateHz float64 `yaml:"anchor_rate_hz"`
	AnchorBurst  int     `yaml:"anchor_burst"`
	Autopilot    float64 `yaml:"autopilot"` // Horizontal anchor drift in units/s when no one steers
}

// StorageConfig defines persistence locations.
type StorageConfig struct {
	DBPath     string `yaml:"db_path"`     // Empty disables the session ledger
	JournalDir string `yaml:"journal_dir"` // Empty disables the journal
}

// LogConfig defines logging output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // Empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ViewConfig defines the terminal observer.
type ViewConfig struct {
	FPS        int     `yaml:"fps"`
	CellSize   float64 `yaml:"cell_size"` // World units per terminal column
	AnchorStep float64 `yaml:"anchor_step"`
}

// Validate checks semantic constraints the schema cannot express.
func (c Config) Validate() error {
	w := c.World
	switch {
	case w.SpawnRadius <= 0:
		return fmt.Errorf("%w: world.spawn_radius must be positive", ErrInvalid)
	case w.DespawnRadius < w.SpawnRadius:
		return fmt.Errorf("%w: world.despawn_radius (%v) must be >= spawn_radius (%v)", ErrInvalid, w.DespawnRadius, w.SpawnRadius)
	case w.Scale.Min <= 0 || w.Scale.Min > w.Scale.Max:
		return fmt.Errorf("%w: world.scale range [%v, %v] is empty", ErrInvalid, w.Scale.Min, w.Scale.Max)
	case w.Speed.Min > w.Speed.Max:
		return fmt.Errorf("%w: world.speed range [%v, %v] is empty", ErrInvalid, w.Speed.Min, w.Speed.Max)
	case len(w.Variants) == 0:
		return fmt.Errorf("%w: world.variants must not be empty", ErrInvalid)
	}
	for i, v := range w.Variants {
		if v.Width <= 0 || v.Height <= 0 {
			return fmt.Errorf("%w: world.variants[%d] (%s) needs a positive size", ErrInvalid, i, v.Name)
		}
	}
	for i, z := range w.ExclusionZones {
		if z.Min.X > z.Max.X || z.Min.Y > z.Max.Y {
			return fmt.Errorf("%w: world.exclusion_zones[%d] (%s) has min > max", ErrInvalid, i, z.Name)
		}
	}

	r := c.Relation
	if r.MinVerticalGap > r.MaxVerticalGap {
		return fmt.Errorf("%w: relation.min_vertical_gap (%v) exceeds max_vertical_gap (%v)", ErrInvalid, r.MinVerticalGap, r.MaxVerticalGap)
	}

	p := c.Replication
	switch {
	case p.TickHz <= 0:
		return fmt.Errorf("%w: replication.tick_hz must be positive", ErrInvalid)
	case p.PositionSyncHz <= 0:
		return fmt.Errorf("%w: replication.position_sync_hz must be positive", ErrInvalid)
	case p.Blend <= 0 || p.Blend > 1:
		return fmt.Errorf("%w: replication.blend must be in (0, 1]", ErrInvalid)
	}
	return nil
}
