package blight

import (
	"blightworld.ai/internal/persistence/snapshot"
)

// ExportSnapshot captures an atomic view of the engine state. Must be
// called from the engine loop goroutine; the returned value is safe to
// hand to a writer goroutine.
func (e *Engine) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: e.cfg.ID, Tick: nowTick},

		Seed:      e.cfg.Seed,
		TickRate:  e.cfg.TickRateHz,
		Height:    e.cfg.Height,
		BoundaryR: e.cfg.BoundaryR,

		SpeedMultiplier:    e.cfg.SpeedMultiplier,
		MaxSources:         e.cfg.MaxSources,
		MinElevation:       e.cfg.MinElevation,
		DefaultRange:       e.cfg.DefaultRange,
		DefaultAmount:      e.cfg.DefaultAmount,
		MaxGenerationLevel: e.cfg.MaxGenerationLevel,

		SpawnThreshold:          e.cfg.SpawnThreshold,
		SaturationThreshold:     e.cfg.SaturationThreshold,
		LowSuccessThreshold:     e.cfg.LowSuccessThreshold,
		VeryLowSuccessThreshold: e.cfg.VeryLowSuccessThreshold,
		RequireAirContact:       e.cfg.RequireAirContact,
		RadiusVariation:         e.cfg.RadiusVariation,
		ChildSpawnDelaySeconds:  e.cfg.ChildSpawnDelaySeconds,
		MaxFailedSpawnAttempts:  e.cfg.MaxFailedSpawnAttempts,
		PillarSearchHeight:      e.cfg.PillarSearchHeight,

		RegenerationHours:  e.cfg.RegenerationHours,
		RegrowEveryTicks:   e.cfg.RegrowEveryTicks,
		MaxRegrowsPerCycle: e.cfg.MaxRegrowsPerCycle,

		RiftRange:    e.cfg.RiftRange,
		RiftAmount:   e.cfg.RiftAmount,
		RiftTTLTicks: e.cfg.RiftTTLTicks,

		CleanupEveryTicks:      e.cfg.CleanupEveryTicks,
		SignalsEveryTicks:      e.cfg.SignalsEveryTicks,
		SnapshotEveryTicks:     e.cfg.SnapshotEveryTicks,
		CorruptedChunkPermille: e.cfg.CorruptedChunkPermille,

		Paused:           e.paused,
		ClockOffsetHours: e.clockOffsetHours,

		Counters: snapshot.CountersV1{NextSource: e.registry.NextIDCounter()},
	}
	if sr, ok := e.rng.(StatefulRandomSource); ok {
		snap.RNGState = sr.State()
	}

	for _, k := range e.chunks.LoadedChunkKeys() {
		ch, _ := e.chunks.ChunkAt(k)
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		snap.Chunks = append(snap.Chunks, snapshot.ChunkV1{
			CX: k.CX, CZ: k.CZ, Height: ch.Height, Blocks: blocks,
		})
	}

	for _, s := range e.registry.Active() {
		snap.Sources = append(snap.Sources, snapshot.SourceV1{
			ID:       uint64(s.ID),
			ParentID: uint64(s.ParentID),
			Pos:      s.Pos.ToArray(),
			Range:    s.Range,
			Amount:   s.Amount,

			CurrentRadius: s.CurrentRadius,
			SuccessCount:  s.SuccessCount,
			AttemptCount:  s.AttemptCount,

			Healing:    s.Healing,
			Metastasis: s.Metastasis,
			Saturated:  s.Saturated,
			Protected:  s.Protected,

			Generation:    s.Generation,
			MaxGeneration: s.MaxGeneration,

			BlocksTotal:      s.BlocksTotal,
			BlocksSinceSpawn: s.BlocksSinceSpawn,
			SpawnThreshold:   s.SpawnThreshold,

			StallCount:   s.StallCount,
			FailedSpawns: s.FailedSpawns,

			ChildrenSpawned:     s.ChildrenSpawned,
			HasSpawnedChild:     s.HasSpawnedChild,
			LastChildSpawnHours: s.LastChildSpawnHours,
		})
	}

	for _, en := range e.regrow {
		snap.Regrow = append(snap.Regrow, snapshot.RegrowV1{
			Pos:           en.Pos.ToArray(),
			RevertTo:      en.RevertTo,
			RecordedHours: en.RecordedHours,
		})
	}

	for _, r := range e.rifts {
		snap.Rifts = append(snap.Rifts, snapshot.RiftV1{
			Pos:         r.Pos.ToArray(),
			Range:       r.Range,
			Amount:      r.Amount,
			ExpiresTick: r.ExpiresTick,
		})
	}

	return snap
}

// ImportSnapshot restores engine state from a snapshot. Must run before
// the loop starts.
func (e *Engine) ImportSnapshot(snap snapshot.SnapshotV1) {
	e.tick.Store(snap.Header.Tick)
	e.paused = snap.Paused
	e.clockOffsetHours = snap.ClockOffsetHours
	if sr, ok := e.rng.(StatefulRandomSource); ok {
		sr.SetState(snap.RNGState)
	}

	for _, ch := range snap.Chunks {
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		e.chunks.ImportChunk(ch.CX, ch.CZ, blocks)
	}
	e.rebuildCorruptedCounts()

	e.registry = NewRegistry(e.cfg.MaxSources)
	e.registry.SetNextIDCounter(snap.Counters.NextSource)
	for _, sv := range snap.Sources {
		s := &Source{
			ID:       SourceID(sv.ID),
			ParentID: SourceID(sv.ParentID),
			Pos:      Vec3i{X: sv.Pos[0], Y: sv.Pos[1], Z: sv.Pos[2]},
			Range:    sv.Range,
			Amount:   sv.Amount,

			CurrentRadius: sv.CurrentRadius,
			SuccessCount:  sv.SuccessCount,
			AttemptCount:  sv.AttemptCount,

			Healing:    sv.Healing,
			Metastasis: sv.Metastasis,
			Saturated:  sv.Saturated,
			Protected:  sv.Protected,

			Generation:    sv.Generation,
			MaxGeneration: sv.MaxGeneration,

			BlocksTotal:      sv.BlocksTotal,
			BlocksSinceSpawn: sv.BlocksSinceSpawn,
			SpawnThreshold:   sv.SpawnThreshold,

			StallCount:   sv.StallCount,
			FailedSpawns: sv.FailedSpawns,

			ChildrenSpawned:     sv.ChildrenSpawned,
			HasSpawnedChild:     sv.HasSpawnedChild,
			LastChildSpawnHours: sv.LastChildSpawnHours,
		}
		_ = e.registry.Add(s)
	}

	e.regrow = e.regrow[:0]
	for _, rv := range snap.Regrow {
		e.regrow = append(e.regrow, RegrowEntry{
			Pos:           Vec3i{X: rv.Pos[0], Y: rv.Pos[1], Z: rv.Pos[2]},
			RevertTo:      rv.RevertTo,
			RecordedHours: rv.RecordedHours,
		})
	}

	e.rifts = e.rifts[:0]
	for _, rv := range snap.Rifts {
		e.rifts = append(e.rifts, Rift{
			Pos:         Vec3i{X: rv.Pos[0], Y: rv.Pos[1], Z: rv.Pos[2]},
			Range:       rv.Range,
			Amount:      rv.Amount,
			ExpiresTick: rv.ExpiresTick,
		})
	}
}

// rebuildCorruptedCounts rescans imported chunks once at restore time so
// the incremental counters start from truth.
func (e *Engine) rebuildCorruptedCounts() {
	corruptedIDs := map[uint16]bool{}
	for id, kind := range e.cats.Blocks.Palette {
		if e.class.IsCorrupted(kind) {
			corruptedIDs[uint16(id)] = true
		}
	}
	e.corruptedCount = map[ChunkKey]int{}
	for _, k := range e.chunks.LoadedChunkKeys() {
		ch, _ := e.chunks.ChunkAt(k)
		n := 0
		for _, b := range ch.Blocks {
			if corruptedIDs[b] {
				n++
			}
		}
		if n > 0 {
			e.corruptedCount[k] = n
		}
	}
}
