package blight

// The regeneration tracker runs on a coarser cadence than spreading. Each
// cycle reverts entries whose recorded timestamp is old enough, at most
// MaxRegrowsPerCycle per cycle so a time skip doesn't snap half the map
// back at once.

func (e *Engine) enqueueRegrow(pos Vec3i, revertTo string) {
	e.regrow = append(e.regrow, RegrowEntry{
		Pos:           pos,
		RevertTo:      revertTo,
		RecordedHours: e.gameHours(),
	})
}

func (e *Engine) stepRegrow() {
	now := e.gameHours()
	reverted := 0

	keep := e.regrow[:0]
	for i := range e.regrow {
		entry := e.regrow[i]
		if reverted >= e.cfg.MaxRegrowsPerCycle {
			keep = append(keep, entry)
			continue
		}
		elapsed := now - entry.RecordedHours
		if elapsed < 0 {
			// Admin clock moved backward; re-stamp instead of reverting
			// (or waiting out a huge negative interval).
			entry.RecordedHours = now
			keep = append(keep, entry)
			continue
		}
		if elapsed < e.cfg.RegenerationHours {
			keep = append(keep, entry)
			continue
		}
		e.revertGuarded(entry)
		reverted++
	}
	e.regrow = keep
	e.tickReverted += reverted
}

func (e *Engine) revertGuarded(entry RegrowEntry) {
	defer func() {
		if r := recover(); r != nil {
			e.panicsTotal++
			e.tickPanics++
		}
	}()
	target := entry.RevertTo
	if target == RevertNone {
		target = "AIR"
	}
	prev := e.kindOf(e.world.GetBlock(entry.Pos))
	e.applyBlock(entry.Pos, target)
	e.audit("REVERT", 0, entry.Pos, prev, target)
}
