package config

import (
	_ "embed"
)

//go:embed defaults/cloudsync.yaml
var defaultYAML []byte

// DefaultYAML returns the embedded default configuration document.
func DefaultYAML() []byte {
	return defaultYAML
}

// Default returns the default configuration.
// It matches defaults/cloudsync.yaml and is used as the base every loaded
// document is merged over.
func Default() Config {
	return Config{
		World: WorldConfig{
			Seed:            0,
			SpawnRadius:     24,
			DespawnRadius:   32,
			MaxPlatforms:    24,
			UpdateThreshold: 1.5,
			MinSeparation:   1.0,
			Scale:           Range{Min: 0.8, Max: 1.4},
			Speed:           Range{Min: -1.5, Max: 1.5},
			MaxSpawnRetries: 12,
			ShrinkDuration:  1.5,
			RestTolerance:   0.25,
			Variants: []VariantConfig{
				{Name: "puff", Width: 3, Height: 1},
				{Name: "cumulus", Width: 5, Height: 1.5},
				{Name: "storm", Width: 4, Height: 2, NoBridges: true},
			},
			ExclusionZones: []ZoneConfig{
				{Name: "spire", Min: Point{X: 40, Y: -6}, Max: Point{X: 46, Y: 30}, Blocking: true},
			},
		},
		Relation: RelationConfig{
			MaxDistance:    4,
			MinVerticalGap: 0.5,
			MaxVerticalGap: 8,
			MaxBridges:     16,
			BridgeWidth:    1,
		},
		Replication: ReplicationConfig{
			TickHz:                50,
			PositionSyncHz:        10,
			CorrectionThreshold:   0.2,
			Blend:                 1.0,
			SessionBuffer:         512,
			SnapshotCompressBytes: 4096,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			Path:         "/ws",
			AnchorRateHz: 30,
			AnchorBurst:  10,
		},
		Storage: StorageConfig{
			DBPath: "~/.cloudsync/cloudsync.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		View: ViewConfig{
			FPS:        30,
			CellSize:   0.5,
			AnchorStep: 0.5,
		},
	}
}
