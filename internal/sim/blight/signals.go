package blight

import (
	"math"
	"sort"
)

// SignalView is the outbound contract for peripheral systems (rendering,
// audio, weather): a per-chunk corruption predicate and an aggregate
// intensity score near a point. It is rebuilt every SignalsEveryTicks and
// immutable after publication, so readers never race the engine loop.
type SignalView struct {
	Tick uint64

	corrupted map[ChunkKey]bool
	sources   []sourceSignal
	regrowByC map[ChunkKey]int
}

type sourceSignal struct {
	pos     Vec3i
	radius  float64
	healing bool
}

func (e *Engine) Signals() SignalView {
	v, _ := e.signals.Load().(SignalView)
	return v
}

// chunkCorrupted compares a chunk's corrupted-block count against the
// permille threshold taken over its 16x16 footprint: at the default 150
// permille a column needs ~38 corrupted blocks before it reads as
// blighted.
func (e *Engine) chunkCorrupted(_ ChunkKey, count int) bool {
	return count*1000 >= e.cfg.CorruptedChunkPermille*16*16
}

func (e *Engine) refreshSignals(nowTick uint64) {
	corrupted := make(map[ChunkKey]bool, len(e.corruptedCount))
	for k, n := range e.corruptedCount {
		if e.chunkCorrupted(k, n) {
			corrupted[k] = true
		}
	}

	srcs := make([]sourceSignal, 0, e.registry.Len())
	for _, s := range e.registry.Active() {
		if s.Saturated {
			continue
		}
		srcs = append(srcs, sourceSignal{pos: s.Pos, radius: s.CurrentRadius, healing: s.Healing})
	}
	for _, r := range e.rifts {
		srcs = append(srcs, sourceSignal{pos: r.Pos, radius: float64(r.Range)})
	}

	regrowByC := map[ChunkKey]int{}
	for _, en := range e.regrow {
		k := ChunkKey{CX: floorDiv(en.Pos.X, 16), CZ: floorDiv(en.Pos.Z, 16)}
		regrowByC[k]++
	}

	e.signals.Store(SignalView{
		Tick:      nowTick,
		corrupted: corrupted,
		sources:   srcs,
		regrowByC: regrowByC,
	})
}

func (v SignalView) ChunkCorrupted(cx, cz int) bool {
	return v.corrupted[ChunkKey{CX: cx, CZ: cz}]
}

// CorruptedChunkKeys returns the flagged chunks in deterministic order.
func (v SignalView) CorruptedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(v.corrupted))
	for k := range v.corrupted {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// IntensityAt scores how hard the blight presses on a point: each active
// corruption emitter contributes its radius damped by distance, healing
// sources subtract half their weight, and pending regrow entries in the
// point's chunk add a small ambient term.
func (v SignalView) IntensityAt(pos Vec3i) float64 {
	score := 0.0
	for _, s := range v.sources {
		dx := float64(pos.X - s.pos.X)
		dy := float64(pos.Y - s.pos.Y)
		dz := float64(pos.Z - s.pos.Z)
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dist > 4*s.radius {
			continue
		}
		w := s.radius / (1 + dist)
		if s.healing {
			score -= w / 2
		} else {
			score += w
		}
	}
	k := ChunkKey{CX: floorDiv(pos.X, 16), CZ: floorDiv(pos.Z, 16)}
	score += 0.01 * float64(v.regrowByC[k])
	if score < 0 {
		score = 0
	}
	return score
}
