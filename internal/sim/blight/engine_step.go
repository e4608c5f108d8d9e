package blight

import (
	"context"
	"time"

	"blightworld.ai/internal/protocol"
)

func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []CommandEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case env := <-e.inbox:
			pending = append(pending, env)
		case <-ticker.C:
			e.stepInternal(pending)
			pending = pending[:0]
		}
	}
}

// StepOnce advances the engine by a single tick using the same ordering
// semantics as Run. It is primarily intended for deterministic
// replays/tests.
func (e *Engine) StepOnce(cmds []CommandEnvelope) (tick uint64, digest string) {
	tick = e.tick.Load()
	e.stepInternal(cmds)
	return tick, e.stateDigest(tick)
}

func (e *Engine) stepInternal(cmds []CommandEnvelope) {
	stepStart := time.Now()
	nowTick := e.tick.Load()

	e.tickConverted = 0
	e.tickHealed = 0
	e.tickReverted = 0
	e.tickSpawned = 0
	e.tickEvicted = 0
	e.tickPanics = 0

	// Commands apply at the tick boundary, before any spreading, so a
	// PAUSE or PLACE_SOURCE takes effect this tick.
	for _, env := range cmds {
		e.applyCommand(env, nowTick)
	}

	if !e.paused {
		e.stepRifts(nowTick)
		for _, s := range e.registry.Active() {
			e.runSourceGuarded(s)
		}
		if e.cfg.RegrowEveryTicks > 0 && nowTick%uint64(e.cfg.RegrowEveryTicks) == 0 {
			e.stepRegrow()
		}
	}

	// Anchor sweep: a source whose anchor block vanished is silently
	// removed, not an error.
	e.registry.RemoveWhere(func(s *Source) bool {
		return e.isAir(e.world.GetBlock(s.Pos))
	})

	if e.cfg.CleanupEveryTicks > 0 && nowTick%uint64(e.cfg.CleanupEveryTicks) == 0 {
		e.tickEvicted += e.registry.CleanupSaturated()
	}

	if e.cfg.SignalsEveryTicks > 0 && nowTick%uint64(e.cfg.SignalsEveryTicks) == 0 {
		e.refreshSignals(nowTick)
	}

	digest := e.stateDigest(nowTick)
	if e.tickLogger != nil {
		var applied []protocol.CommandMsg
		for _, env := range cmds {
			applied = append(applied, env.Cmd)
		}
		_ = e.tickLogger.WriteTick(TickLogEntry{
			Tick:      nowTick,
			Sources:   e.registry.Len(),
			Converted: e.tickConverted,
			Healed:    e.tickHealed,
			Reverted:  e.tickReverted,
			Spawned:   e.tickSpawned,
			Evicted:   e.tickEvicted,
			RegrowLen: len(e.regrow),
			Panics:    e.tickPanics,
			Digest:    digest,
			Commands:  applied,
		})
	}

	// Snapshot every N ticks (default 3000), starting after tick 0.
	// Header.Tick is the next tick to execute, so a resume picks up
	// exactly where the log left off.
	if e.snapshotSink != nil && nowTick != 0 && e.cfg.SnapshotEveryTicks > 0 {
		every := uint64(e.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			snap := e.ExportSnapshot(nowTick + 1)
			select {
			case e.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	e.tick.Add(1)
	e.storeMetrics(stepMS)
}

// runSourceGuarded isolates a panic to the one source that raised it; the
// remaining queue still runs this tick.
func (e *Engine) runSourceGuarded(s *Source) {
	defer func() {
		if r := recover(); r != nil {
			e.panicsTotal++
			e.tickPanics++
		}
	}()
	e.spreadSource(s)
}
