package blight

// Per-source spread window and radius adaptation constants, fixed by the
// sim design rather than tuning: the attempt budget is 5x the per-tick
// conversion target, success rate is evaluated every 100 attempts, and a
// stalled source waits 10 bad windows before trying to metastasize.
const (
	attemptBudgetFactor = 5
	successWindow       = 100
	expandFast          = 4
	expandSlow          = 2
	stallTrigger        = 10
	saturationSamples   = 64
)

// spreadSource runs one tick of conversion attempts for a single source,
// then folds the outcome into its adaptive state.
func (e *Engine) spreadSource(s *Source) {
	if s.Saturated {
		return
	}

	eff := effectiveAmount(s.Amount, e.cfg.SpeedMultiplier)
	budget := attemptBudgetFactor * eff

	successes := 0
	for i := 0; i < budget && successes < eff; i++ {
		off := WeightedOffset(e.rng, s.CurrentRadius)
		pos := s.Pos.Add(off)
		id := e.world.GetBlock(pos)
		if e.isAir(id) {
			continue
		}
		kind := e.kindOf(id)
		if s.Healing {
			if e.healOne(s, pos, kind) {
				successes++
			}
		} else {
			if e.corruptOne(s, pos, kind) {
				successes++
			}
		}
	}

	// The window charges the full budget even when the loop stopped
	// early; a source that hits its target every tick still converges to
	// a 20% measured rate and stays put.
	s.AttemptCount += budget
	if s.AttemptCount >= successWindow {
		e.evaluateWindow(s)
	}

	// Saturation-threshold spawn path, independent of the stall path: a
	// productive source that has filled its surroundings pushes the
	// frontier outward without ever stalling.
	if !s.Healing && !s.Saturated && s.BlocksSinceSpawn >= s.SpawnThreshold && s.CurrentRadius >= float64(s.Range) {
		if e.localSaturation(s) >= e.cfg.SaturationThreshold {
			e.trySpawnChild(s)
		}
	}
}

func (e *Engine) corruptOne(s *Source, pos Vec3i, kind string) bool {
	if e.class.IsCorrupted(kind) {
		return false
	}
	corrupted, revertTo, ok := e.class.ForCorruption(kind)
	if !ok {
		return false
	}
	e.applyBlock(pos, corrupted)
	e.enqueueRegrow(pos, revertTo)
	e.audit("CONVERT", s.ID, pos, kind, corrupted)
	e.tickConverted++
	s.SuccessCount++
	s.BlocksTotal++
	s.BlocksSinceSpawn++
	return true
}

func (e *Engine) healOne(s *Source, pos Vec3i, kind string) bool {
	if !e.class.IsCorrupted(kind) {
		return false
	}
	healed, ok := e.class.ForHealing(kind)
	if !ok {
		return false
	}
	target := healed
	if healed == RevertNone {
		target = "AIR"
	}
	e.applyBlock(pos, target)
	e.audit("HEAL", s.ID, pos, kind, target)
	e.tickHealed++
	s.SuccessCount++
	return true
}

// evaluateWindow closes a 100-attempt window: expand the radius while the
// local area still yields, count stalled windows once it is pinned at max
// range, and escalate a persistent stall into a metastasis attempt.
func (e *Engine) evaluateWindow(s *Source) {
	rate := float64(s.SuccessCount) / float64(s.AttemptCount)

	switch {
	case rate < e.cfg.LowSuccessThreshold && s.CurrentRadius < float64(s.Range):
		step := float64(expandSlow)
		if rate < e.cfg.LowSuccessThreshold/2 {
			step = float64(expandFast)
		}
		s.CurrentRadius += step
		if s.CurrentRadius > float64(s.Range) {
			s.CurrentRadius = float64(s.Range)
		}
		s.StallCount = 0

	case rate < e.cfg.VeryLowSuccessThreshold && s.CurrentRadius >= float64(s.Range) && !s.Healing:
		s.StallCount++
		if s.StallCount >= stallTrigger {
			if e.trySpawnChild(s) {
				s.StallCount = 0
				s.FailedSpawns = 0
			} else {
				s.FailedSpawns++
				if s.FailedSpawns >= e.cfg.MaxFailedSpawnAttempts {
					s.Saturated = true
				}
			}
		}

	default:
		s.StallCount = 0
	}

	s.SuccessCount = 0
	s.AttemptCount = 0
}

// localSaturation samples the sphere around the source and reports what
// fraction of the blight-relevant blocks (convertible or already
// corrupted) are corrupted. Air and inert blocks don't count either way.
func (e *Engine) localSaturation(s *Source) float64 {
	r := int(s.CurrentRadius)
	if r < 1 {
		r = 1
	}
	relevant, corrupted := 0, 0
	for i := 0; i < saturationSamples; i++ {
		dx := e.rng.UniformInt(2*r+1) - r
		dy := e.rng.UniformInt(2*r+1) - r
		dz := e.rng.UniformInt(2*r+1) - r
		// The estimate is over the search ball; cube corners lie outside it.
		if dx*dx+dy*dy+dz*dz > r*r {
			continue
		}
		id := e.world.GetBlock(s.Pos.Add(Vec3i{X: dx, Y: dy, Z: dz}))
		if e.isAir(id) {
			continue
		}
		kind := e.kindOf(id)
		if e.class.IsCorrupted(kind) {
			relevant++
			corrupted++
			continue
		}
		if _, _, ok := e.class.ForCorruption(kind); ok {
			relevant++
		}
	}
	if relevant == 0 {
		return 0
	}
	return float64(corrupted) / float64(relevant)
}
