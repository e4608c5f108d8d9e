package blight

import "math"

// Metastasis search constants. The pillar search is the cheap local
// strategy; the ring search is the expensive fallback that carries the
// front over dead ground.
const (
	childrenCap = 3

	pillarCandidates     = 24
	pillarMinConvertible = 10
	pillarCheckRadius    = 4

	longRangeProbes         = 48
	longRangeMinConvertible = 20
	longRangeDistanceCap    = 512
)

// trySpawnChild attempts to place a child source for parent. Returns true
// only when a child was actually registered.
func (e *Engine) trySpawnChild(p *Source) bool {
	if p.Healing {
		return false
	}
	if p.Generation >= p.MaxGeneration {
		return false
	}

	now := e.gameHours()
	if p.HasSpawnedChild {
		elapsed := now - p.LastChildSpawnHours
		if elapsed >= 0 && elapsed < e.childSpawnDelayHours() {
			return false
		}
		// Negative elapsed means the admin clock moved backward; treat
		// the cooldown as served.
	}

	if e.registry.Len() >= e.registry.Cap() {
		if id, ok := e.registry.EvictOne(); ok {
			e.tickEvicted++
			e.audit("EVICT", id, Vec3i{}, "", "")
		}
		if e.registry.Len() >= e.registry.Cap() {
			return false
		}
	}

	pos, ok := e.findChildPosition(p)
	if !ok {
		return false
	}

	mult := 1 - e.cfg.RadiusVariation + e.rng.UniformFloat()*2*e.cfg.RadiusVariation
	childRange := clampRange(int(math.Round(float64(p.Range) * mult)))
	// Children never start smaller than their initial radius.
	if childRange < 3 {
		childRange = 3
	}

	child := &Source{
		ID:             e.registry.NewID(),
		ParentID:       p.ID,
		Pos:            pos,
		Range:          childRange,
		Amount:         p.Amount,
		CurrentRadius:  startRadius(childRange),
		Metastasis:     true,
		Generation:     p.Generation + 1,
		MaxGeneration:  p.MaxGeneration,
		SpawnThreshold: e.cfg.SpawnThreshold,
	}
	if err := e.registry.Add(child); err != nil {
		return false
	}

	p.ChildrenSpawned++
	p.HasSpawnedChild = true
	p.LastChildSpawnHours = now
	p.BlocksSinceSpawn = 0
	p.FailedSpawns = 0
	if p.ChildrenSpawned >= childrenCap {
		// Rotate the frontier: the lineage continues through the
		// children, the ancestor stops spreading.
		p.Saturated = true
	}

	e.tickSpawned++
	e.audit("SPAWN", child.ID, pos, "", "")
	return true
}

func (e *Engine) findChildPosition(p *Source) (Vec3i, bool) {
	if pos, ok := e.pillarSearch(p); ok {
		return pos, true
	}
	return e.longRangeSearch(p)
}

type spawnCandidate struct {
	pos   Vec3i
	score int
}

// pillarSearch probes random directions at 1.2x the live radius out to 2x
// range, scanning each column for an anchor block worth growing from.
func (e *Engine) pillarSearch(p *Source) (Vec3i, bool) {
	minD := p.CurrentRadius * 1.2
	maxD := float64(p.Range) * 2
	if maxD < minD {
		maxD = minD
	}
	exclusion := float64(p.Range) * 0.5

	var best spawnCandidate
	found := false
	for i := 0; i < pillarCandidates; i++ {
		az := e.rng.UniformFloat() * 2 * math.Pi
		d := minD + e.rng.UniformFloat()*(maxD-minD)
		cx := p.Pos.X + int(d*math.Cos(az))
		cz := p.Pos.Z + int(d*math.Sin(az))

		pos, ok := e.scanPillar(cx, cz, p.Pos.Y, e.cfg.PillarSearchHeight)
		if !ok {
			continue
		}
		if e.nearExistingSource(pos, exclusion) {
			continue
		}
		score := e.convertibleCount(pos, pillarCheckRadius)
		if score <= pillarMinConvertible {
			continue
		}
		if !found || score > best.score {
			best = spawnCandidate{pos: pos, score: score}
			found = true
		}
	}
	return best.pos, found
}

// scanPillar walks a vertical column around the reference elevation and
// returns the first acceptable anchor: above the minimum elevation, a
// solid block, and (if required) touching air so buried strata don't
// sprout sources.
func (e *Engine) scanPillar(x, refY, z, halfHeight int) (Vec3i, bool) {
	top := refY + halfHeight
	bottom := refY - halfHeight
	if bottom < e.cfg.MinElevation {
		bottom = e.cfg.MinElevation
	}
	for y := top; y >= bottom; y-- {
		pos := Vec3i{X: x, Y: y, Z: z}
		id := e.world.GetBlock(pos)
		if e.isAir(id) {
			continue
		}
		if y <= e.cfg.MinElevation {
			return Vec3i{}, false
		}
		if e.cfg.RequireAirContact && !e.touchesAir(pos) {
			return Vec3i{}, false
		}
		return pos, true
	}
	return Vec3i{}, false
}

func (e *Engine) touchesAir(pos Vec3i) bool {
	for _, off := range [6]Vec3i{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	} {
		if e.isAir(e.world.GetBlock(pos.Add(off))) {
			return true
		}
	}
	return false
}

// convertibleCount counts not-yet-corrupted convertible blocks in a cube
// around pos; it is the "is this spot worth spawning on" score.
func (e *Engine) convertibleCount(pos Vec3i, radius int) int {
	n := 0
	for dy := -radius; dy <= radius; dy++ {
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				id := e.world.GetBlock(pos.Add(Vec3i{X: dx, Y: dy, Z: dz}))
				if e.isAir(id) {
					continue
				}
				kind := e.kindOf(id)
				if e.class.IsCorrupted(kind) {
					continue
				}
				if _, _, ok := e.class.ForCorruption(kind); ok {
					n++
				}
			}
		}
	}
	return n
}

func (e *Engine) nearExistingSource(pos Vec3i, dist float64) bool {
	d2 := dist * dist
	for _, s := range e.registry.Active() {
		if float64(HorizDist2(pos, s.Pos)) < d2 {
			return true
		}
	}
	return false
}

// longRangeSearch is the fallback when everything nearby is spent: probe
// rings at 2x/4x/6x/8x the parent's range with a taller column scan and a
// stricter convertibility bar. Candidates closer than one full range to
// each other collapse into the better-scoring one.
func (e *Engine) longRangeSearch(p *Source) (Vec3i, bool) {
	exclusion := float64(p.Range) * 0.5
	spacing2 := p.Range * p.Range

	for _, factor := range [4]int{2, 4, 6, 8} {
		ringDist := float64(p.Range * factor)
		if ringDist > longRangeDistanceCap {
			ringDist = longRangeDistanceCap
		}

		var cands []spawnCandidate
		for i := 0; i < longRangeProbes; i++ {
			az := e.rng.UniformFloat() * 2 * math.Pi
			d := ringDist * (0.9 + 0.2*e.rng.UniformFloat())
			cx := p.Pos.X + int(d*math.Cos(az))
			cz := p.Pos.Z + int(d*math.Sin(az))

			pos, ok := e.scanPillar(cx, cz, p.Pos.Y, 2*e.cfg.PillarSearchHeight)
			if !ok {
				continue
			}
			if e.nearExistingSource(pos, exclusion) {
				continue
			}
			score := e.convertibleCount(pos, pillarCheckRadius)
			if score <= longRangeMinConvertible {
				continue
			}
			cands = append(cands, spawnCandidate{pos: pos, score: score})
		}
		if len(cands) == 0 {
			continue
		}

		sortCandidates(cands)
		selected := cands[:0]
		for _, c := range cands {
			ok := true
			for _, s := range selected {
				if HorizDist2(c.pos, s.pos) < spacing2 {
					ok = false
					break
				}
			}
			if ok {
				selected = append(selected, c)
			}
		}
		if len(selected) > 0 {
			return selected[0].pos, true
		}
	}
	return Vec3i{}, false
}

func sortCandidates(cands []spawnCandidate) {
	// Insertion sort by score descending; candidate lists are tiny.
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].score > cands[j-1].score; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}
