package blight

// Rifts spread with plain uniform cube sampling over a fixed range: no
// weighted offsets, no adaptive radius, no metastasis. They are processed
// before registry sources each tick and expire by TTL.

const riftBudgetFactor = 2

func (e *Engine) stepRifts(nowTick uint64) {
	keep := e.rifts[:0]
	for i := range e.rifts {
		r := e.rifts[i]
		if nowTick >= r.ExpiresTick {
			continue
		}
		e.spreadRift(&r)
		keep = append(keep, r)
	}
	e.rifts = keep
}

func (e *Engine) spreadRift(r *Rift) {
	budget := riftBudgetFactor * r.Amount
	successes := 0
	for i := 0; i < budget && successes < r.Amount; i++ {
		off := Vec3i{
			X: e.rng.UniformInt(2*r.Range+1) - r.Range,
			Y: e.rng.UniformInt(2*r.Range+1) - r.Range,
			Z: e.rng.UniformInt(2*r.Range+1) - r.Range,
		}
		pos := r.Pos.Add(off)
		id := e.world.GetBlock(pos)
		if e.isAir(id) {
			continue
		}
		kind := e.kindOf(id)
		if e.class.IsCorrupted(kind) {
			continue
		}
		corrupted, revertTo, ok := e.class.ForCorruption(kind)
		if !ok {
			continue
		}
		e.applyBlock(pos, corrupted)
		e.enqueueRegrow(pos, revertTo)
		e.audit("CONVERT", 0, pos, kind, corrupted)
		e.tickConverted++
		successes++
	}
}
