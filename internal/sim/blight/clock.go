package blight

// gameHours derives the simulation clock from the tick counter: one tick
// is 1/TickRateHz game seconds, 3600 game seconds to the hour, plus the
// admin offset. ADVANCE_TIME may push the offset backward; consumers of
// the clock (cooldowns, regrow) must tolerate that rather than crash.
func (e *Engine) gameHours() float64 {
	return float64(e.tick.Load())/float64(e.cfg.TickRateHz)/3600.0 + e.clockOffsetHours
}

func (e *Engine) childSpawnDelayHours() float64 {
	speed := e.cfg.SpeedMultiplier
	if speed < 0.1 {
		speed = 0.1
	}
	return e.cfg.ChildSpawnDelaySeconds / speed / 3600.0
}
