package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz     int `yaml:"tick_rate_hz"`
	Height         int `yaml:"height"`
	WorldBoundaryR int `yaml:"world_boundary_r"`

	SpeedMultiplier    float64 `yaml:"speed_multiplier"`
	MaxSources         int     `yaml:"max_sources"`
	MinElevation       int     `yaml:"min_elevation"`
	DefaultRange       int     `yaml:"default_range"`
	DefaultAmount      int     `yaml:"default_amount"`
	MaxGenerationLevel int     `yaml:"max_generation_level"`

	SpawnThreshold          int     `yaml:"spawn_threshold"`
	SaturationThreshold     float64 `yaml:"saturation_threshold"`
	LowSuccessThreshold     float64 `yaml:"low_success_threshold"`
	VeryLowSuccessThreshold float64 `yaml:"very_low_success_threshold"`
	RequireAirContact       *bool   `yaml:"require_air_contact"`
	RadiusVariation         float64 `yaml:"radius_variation"`
	ChildSpawnDelaySeconds  float64 `yaml:"child_spawn_delay_seconds"`
	MaxFailedSpawnAttempts  int     `yaml:"max_failed_spawn_attempts"`
	PillarSearchHeight      int     `yaml:"pillar_search_height"`

	RegenerationHours  float64 `yaml:"regeneration_hours"`
	RegrowEveryTicks   int     `yaml:"regrow_every_ticks"`
	MaxRegrowsPerCycle int     `yaml:"max_regrows_per_cycle"`

	RiftRange    int `yaml:"rift_range"`
	RiftAmount   int `yaml:"rift_amount"`
	RiftTTLTicks int `yaml:"rift_ttl_ticks"`

	CleanupEveryTicks      int `yaml:"cleanup_every_ticks"`
	SignalsEveryTicks      int `yaml:"signals_every_ticks"`
	SnapshotEveryTicks     int `yaml:"snapshot_every_ticks"`
	CorruptedChunkPermille int `yaml:"corrupted_chunk_permille"`
}

// Defaults mirrors configs/tuning.yaml for runs without a tuning file.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "0.3",

		TickRateHz:     5,
		Height:         64,
		WorldBoundaryR: 4000,

		SpeedMultiplier:    1.0,
		MaxSources:         64,
		MinElevation:       4,
		DefaultRange:       32,
		DefaultAmount:      4,
		MaxGenerationLevel: 6,

		SpawnThreshold:          400,
		SaturationThreshold:     0.65,
		LowSuccessThreshold:     0.20,
		VeryLowSuccessThreshold: 0.05,
		RequireAirContact:       boolPtr(true),
		RadiusVariation:         0.25,
		ChildSpawnDelaySeconds:  45,
		MaxFailedSpawnAttempts:  5,
		PillarSearchHeight:      16,

		RegenerationHours:  2.0,
		RegrowEveryTicks:   100,
		MaxRegrowsPerCycle: 50,

		RiftRange:    8,
		RiftAmount:   6,
		RiftTTLTicks: 600,

		CleanupEveryTicks:      25,
		SignalsEveryTicks:      50,
		SnapshotEveryTicks:     3000,
		CorruptedChunkPermille: 150,
	}
}

// AirContactRequired is the effective air-contact rule. The field is a
// pointer so a tuning file that omits the key keeps the default
// requirement instead of silently disabling it.
func (t Tuning) AirContactRequired() bool {
	return t.RequireAirContact == nil || *t.RequireAirContact
}

func boolPtr(b bool) *bool { return &b }

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
