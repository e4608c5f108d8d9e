package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed      int64 `json:"seed"`
	TickRate  int   `json:"tick_rate_hz"`
	Height    int   `json:"height"`
	BoundaryR int   `json:"boundary_r"`

	// Simulation tuning (captured for deterministic replay/resume).
	SpeedMultiplier    float64 `json:"speed_multiplier,omitempty"`
	MaxSources         int     `json:"max_sources,omitempty"`
	MinElevation       int     `json:"min_elevation,omitempty"`
	DefaultRange       int     `json:"default_range,omitempty"`
	DefaultAmount      int     `json:"default_amount,omitempty"`
	MaxGenerationLevel int     `json:"max_generation_level,omitempty"`

	SpawnThreshold          int     `json:"spawn_threshold,omitempty"`
	SaturationThreshold     float64 `json:"saturation_threshold,omitempty"`
	LowSuccessThreshold     float64 `json:"low_success_threshold,omitempty"`
	VeryLowSuccessThreshold float64 `json:"very_low_success_threshold,omitempty"`
	RequireAirContact       bool    `json:"require_air_contact,omitempty"`
	RadiusVariation         float64 `json:"radius_variation,omitempty"`
	ChildSpawnDelaySeconds  float64 `json:"child_spawn_delay_seconds,omitempty"`
	MaxFailedSpawnAttempts  int     `json:"max_failed_spawn_attempts,omitempty"`
	PillarSearchHeight      int     `json:"pillar_search_height,omitempty"`

	RegenerationHours  float64 `json:"regeneration_hours,omitempty"`
	RegrowEveryTicks   int     `json:"regrow_every_ticks,omitempty"`
	MaxRegrowsPerCycle int     `json:"max_regrows_per_cycle,omitempty"`

	RiftRange    int `json:"rift_range,omitempty"`
	RiftAmount   int `json:"rift_amount,omitempty"`
	RiftTTLTicks int `json:"rift_ttl_ticks,omitempty"`

	CleanupEveryTicks      int `json:"cleanup_every_ticks,omitempty"`
	SignalsEveryTicks      int `json:"signals_every_ticks,omitempty"`
	SnapshotEveryTicks     int `json:"snapshot_every_ticks,omitempty"`
	CorruptedChunkPermille int `json:"corrupted_chunk_permille,omitempty"`

	Paused           bool    `json:"paused"`
	ClockOffsetHours float64 `json:"clock_offset_hours"`
	// RNGState is the simulation RNG stream position at capture time; a
	// restore that skipped it would draw a different sequence than the
	// original process and diverge on the first post-restore tick.
	RNGState uint64 `json:"rng_state"`

	Chunks  []ChunkV1  `json:"chunks"`
	Sources []SourceV1 `json:"sources"`
	Regrow  []RegrowV1 `json:"regrow"`
	Rifts   []RiftV1   `json:"rifts,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextSource uint64 `json:"next_source"`
}

type ChunkV1 struct {
	CX     int      `json:"cx"`
	CZ     int      `json:"cz"`
	Height int      `json:"height"`
	Blocks []uint16 `json:"blocks"`
}

type SourceV1 struct {
	ID       uint64 `json:"id"`
	ParentID uint64 `json:"parent_id,omitempty"`
	Pos      [3]int `json:"pos"`
	Range    int    `json:"range"`
	Amount   int    `json:"amount"`

	CurrentRadius float64 `json:"current_radius"`
	SuccessCount  int     `json:"success_count"`
	AttemptCount  int     `json:"attempt_count"`

	Healing    bool `json:"healing,omitempty"`
	Metastasis bool `json:"metastasis,omitempty"`
	Saturated  bool `json:"saturated,omitempty"`
	Protected  bool `json:"protected,omitempty"`

	Generation    int `json:"generation"`
	MaxGeneration int `json:"max_generation"`

	BlocksTotal      int `json:"blocks_total"`
	BlocksSinceSpawn int `json:"blocks_since_spawn"`
	SpawnThreshold   int `json:"spawn_threshold"`

	StallCount   int `json:"stall_count"`
	FailedSpawns int `json:"failed_spawns"`

	ChildrenSpawned     int     `json:"children_spawned"`
	HasSpawnedChild     bool    `json:"has_spawned_child,omitempty"`
	LastChildSpawnHours float64 `json:"last_child_spawn_hours,omitempty"`
}

type RegrowV1 struct {
	Pos           [3]int  `json:"pos"`
	RevertTo      string  `json:"revert_to"`
	RecordedHours float64 `json:"recorded_hours"`
}

type RiftV1 struct {
	Pos         [3]int `json:"pos"`
	Range       int    `json:"range"`
	Amount      int    `json:"amount"`
	ExpiresTick uint64 `json:"expires_tick"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Read header line (ignore it for now, gob also contains header).
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// EncodeSnapshot serializes without the file wrapper, for blob-store
// persistence.
func EncodeSnapshot(snap SnapshotV1) ([]byte, error) {
	var buf bytes.Buffer
	hb, _ := json.Marshal(snap.Header)
	buf.Write(hb)
	buf.WriteByte('\n')
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (SnapshotV1, error) {
	var snap SnapshotV1
	br := bufio.NewReader(bytes.NewReader(data))
	_, _ = br.ReadBytes('\n')
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
