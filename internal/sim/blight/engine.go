package blight

import (
	"sync/atomic"

	"blightworld.ai/internal/persistence/snapshot"
	"blightworld.ai/internal/protocol"
	"blightworld.ai/internal/sim/catalogs"
)

type EngineConfig struct {
	ID         string
	TickRateHz int
	Height     int
	Seed       int64
	BoundaryR  int

	SpeedMultiplier    float64
	MaxSources         int
	MinElevation       int
	DefaultRange       int
	DefaultAmount      int
	MaxGenerationLevel int

	SpawnThreshold          int
	SaturationThreshold     float64
	LowSuccessThreshold     float64
	VeryLowSuccessThreshold float64
	RequireAirContact       bool
	NoAirContact            bool // set when tuning explicitly disables air contact
	RadiusVariation         float64
	ChildSpawnDelaySeconds  float64
	MaxFailedSpawnAttempts  int
	PillarSearchHeight      int

	RegenerationHours  float64
	RegrowEveryTicks   int
	MaxRegrowsPerCycle int

	RiftRange    int
	RiftAmount   int
	RiftTTLTicks int

	CleanupEveryTicks      int
	SignalsEveryTicks      int
	SnapshotEveryTicks     int
	CorruptedChunkPermille int
}

func (c *EngineConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 4000
	}
	if c.SpeedMultiplier <= 0 {
		c.SpeedMultiplier = 1.0
	}
	if c.MaxSources <= 0 {
		c.MaxSources = 64
	}
	if c.MinElevation <= 0 {
		c.MinElevation = 4
	}
	if c.DefaultRange <= 0 {
		c.DefaultRange = 32
	}
	if c.DefaultAmount <= 0 {
		c.DefaultAmount = 4
	}
	if c.MaxGenerationLevel <= 0 {
		c.MaxGenerationLevel = 6
	}
	if c.SpawnThreshold <= 0 {
		c.SpawnThreshold = 400
	}
	if c.SaturationThreshold <= 0 {
		c.SaturationThreshold = 0.65
	}
	if c.LowSuccessThreshold <= 0 {
		c.LowSuccessThreshold = 0.20
	}
	if c.VeryLowSuccessThreshold <= 0 {
		c.VeryLowSuccessThreshold = 0.05
	}
	if !c.NoAirContact {
		c.RequireAirContact = true
	}
	if c.RadiusVariation <= 0 {
		c.RadiusVariation = 0.25
	}
	if c.ChildSpawnDelaySeconds <= 0 {
		c.ChildSpawnDelaySeconds = 45
	}
	if c.MaxFailedSpawnAttempts <= 0 {
		c.MaxFailedSpawnAttempts = 5
	}
	if c.PillarSearchHeight <= 0 {
		c.PillarSearchHeight = 16
	}
	if c.RegenerationHours <= 0 {
		c.RegenerationHours = 2.0
	}
	if c.RegrowEveryTicks <= 0 {
		c.RegrowEveryTicks = 100
	}
	if c.MaxRegrowsPerCycle <= 0 {
		c.MaxRegrowsPerCycle = 50
	}
	if c.RiftRange <= 0 {
		c.RiftRange = 8
	}
	if c.RiftAmount <= 0 {
		c.RiftAmount = 6
	}
	if c.RiftTTLTicks <= 0 {
		c.RiftTTLTicks = 600
	}
	if c.CleanupEveryTicks <= 0 {
		c.CleanupEveryTicks = 25
	}
	if c.SignalsEveryTicks <= 0 {
		c.SignalsEveryTicks = 50
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 3000
	}
	if c.CorruptedChunkPermille <= 0 {
		c.CorruptedChunkPermille = 150
	}
}

// RegrowEntry schedules one converted block for reversion.
type RegrowEntry struct {
	Pos           Vec3i
	RevertTo      string // block kind, or RevertNone for air
	RecordedHours float64
}

// Rift is an externally triggered transient emitter. It spreads with
// plain uniform cube sampling, no adaptive radius; rifts are a different
// phenomenon from sources and stay that way.
type Rift struct {
	Pos         Vec3i
	Range       int
	Amount      int
	ExpiresTick uint64
}

type CommandEnvelope struct {
	Cmd  protocol.CommandMsg
	Resp chan protocol.ResultMsg // may be nil for fire-and-forget
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick      uint64 `json:"tick"`
	Sources   int    `json:"sources"`
	Converted int    `json:"converted"`
	Healed    int    `json:"healed"`
	Reverted  int    `json:"reverted"`
	Spawned   int    `json:"spawned"`
	Evicted   int    `json:"evicted"`
	RegrowLen int    `json:"regrow_len"`
	Panics    int    `json:"panics,omitempty"`
	Digest    string `json:"digest"`

	// Commands applied at this tick boundary, recorded so a replay can
	// re-apply the same external inputs.
	Commands []protocol.CommandMsg `json:"commands,omitempty"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Kind   string `json:"kind"` // CONVERT, HEAL, REVERT, SPAWN, EVICT, REMOVE
	Source uint64 `json:"source,omitempty"`
	Pos    [3]int `json:"pos"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

// Engine is the single-threaded authoritative blight simulation.
// All state must be accessed only from the engine loop goroutine.
type Engine struct {
	cfg   EngineConfig
	cats  *catalogs.Catalogs
	class *Classifier
	rng   RandomSource

	tick atomic.Uint64

	chunks *ChunkStore
	world  BlockWorld

	registry *Registry
	regrow   []RegrowEntry
	rifts    []Rift

	paused           bool
	clockOffsetHours float64

	// Corrupted-block count per chunk column, maintained incrementally by
	// applyBlock so the chunk-corrupted signal never rescans terrain.
	corruptedCount map[ChunkKey]int

	inbox chan CommandEnvelope
	stop  chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // EngineMetrics
	signals atomic.Value // SignalView

	panicsTotal uint64

	// Per-tick counters, reset at each step.
	tickConverted int
	tickHealed    int
	tickReverted  int
	tickSpawned   int
	tickEvicted   int
	tickPanics    int
}

type EngineOption func(*Engine)

func WithTickLogger(l TickLogger) EngineOption   { return func(e *Engine) { e.tickLogger = l } }
func WithAuditLogger(l AuditLogger) EngineOption { return func(e *Engine) { e.auditLogger = l } }

func WithSnapshotSink(ch chan<- snapshot.SnapshotV1) EngineOption {
	return func(e *Engine) { e.snapshotSink = ch }
}

// WithBlockWorld substitutes the terrain collaborator; tests use scripted
// worlds instead of the chunk store.
func WithBlockWorld(w BlockWorld) EngineOption { return func(e *Engine) { e.world = w } }

func WithRandomSource(r RandomSource) EngineOption { return func(e *Engine) { e.rng = r } }

func NewEngine(cfg EngineConfig, cats *catalogs.Catalogs, opts ...EngineOption) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg:            cfg,
		cats:           cats,
		class:          NewClassifier(cats),
		registry:       NewRegistry(cfg.MaxSources),
		corruptedCount: map[ChunkKey]int{},
		inbox:          make(chan CommandEnvelope, 256),
		stop:           make(chan struct{}),
	}
	e.chunks = NewChunkStore(WorldGen{
		Seed:       cfg.Seed,
		BoundaryR:  cfg.BoundaryR,
		Height:     cfg.Height,
		Air:        cats.Blocks.Index["AIR"],
		Dirt:       cats.Blocks.Index["DIRT"],
		Grass:      cats.Blocks.Index["GRASS"],
		Sand:       cats.Blocks.Index["SAND"],
		Sandstone:  cats.Blocks.Index["SANDSTONE"],
		Gravel:     cats.Blocks.Index["GRAVEL"],
		Stone:      cats.Blocks.Index["STONE"],
		Clay:       cats.Blocks.Index["CLAY"],
		LogOak:     cats.Blocks.Index["LOG_OAK"],
		LogPine:    cats.Blocks.Index["LOG_PINE"],
		LeavesOak:  cats.Blocks.Index["LEAVES_OAK"],
		LeavesPine: cats.Blocks.Index["LEAVES_PINE"],
	})
	e.world = e.chunks

	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = NewRand(cfg.Seed)
	}

	e.metrics.Store(EngineMetrics{})
	e.signals.Store(SignalView{})
	return e
}

func (e *Engine) ID() string {
	if e == nil {
		return ""
	}
	return e.cfg.ID
}

func (e *Engine) TickRateHz() int {
	if e == nil {
		return 0
	}
	return e.cfg.TickRateHz
}

func (e *Engine) Tick() uint64 { return e.tick.Load() }

// Config returns a copy of the effective (defaulted) configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cats }

// Submit queues a command for the next tick boundary.
func (e *Engine) Submit(env CommandEnvelope) bool {
	select {
	case e.inbox <- env:
		return true
	default:
		return false
	}
}

func (e *Engine) Stop() { close(e.stop) }

// kindOf maps a palette id back to its block kind. Unknown ids classify
// as air, which every consumer treats as "skip".
func (e *Engine) kindOf(id uint16) string {
	if int(id) >= len(e.cats.Blocks.Palette) {
		return "AIR"
	}
	return e.cats.Blocks.Palette[id]
}

func (e *Engine) idOf(kind string) uint16 {
	return e.cats.Blocks.Index[kind]
}

func (e *Engine) isAir(id uint16) bool { return id == 0 }

// applyBlock routes every simulation write through one place so the
// per-chunk corrupted counters stay consistent with the terrain.
func (e *Engine) applyBlock(pos Vec3i, kind string) {
	prev := e.world.GetBlock(pos)
	e.world.SetBlock(pos, e.idOf(kind))

	k := ChunkKey{CX: floorDiv(pos.X, 16), CZ: floorDiv(pos.Z, 16)}
	wasCorrupted := e.class.IsCorrupted(e.kindOf(prev))
	isCorrupted := kind != "AIR" && e.class.IsCorrupted(kind)
	switch {
	case isCorrupted && !wasCorrupted:
		e.corruptedCount[k]++
	case !isCorrupted && wasCorrupted:
		if e.corruptedCount[k] > 0 {
			e.corruptedCount[k]--
		}
		if e.corruptedCount[k] == 0 {
			delete(e.corruptedCount, k)
		}
	}
}

func (e *Engine) audit(kind string, src SourceID, pos Vec3i, from, to string) {
	if e.auditLogger == nil {
		return
	}
	_ = e.auditLogger.WriteAudit(AuditEntry{
		Tick:   e.tick.Load(),
		Kind:   kind,
		Source: uint64(src),
		Pos:    pos.ToArray(),
		From:   from,
		To:     to,
	})
}
