package blight

type SourceID uint64

// Source is one corruption (or healing) emitter and its adaptive state.
// All fields are mutated only from the engine loop goroutine.
type Source struct {
	ID       SourceID
	ParentID SourceID // 0 for explicitly placed sources

	// Pos anchors the emitter; it dies if the anchor block vanishes.
	Pos    Vec3i
	Range  int
	Amount int

	// CurrentRadius is the live search radius: starts at min(3, Range),
	// non-decreasing, capped at Range.
	CurrentRadius float64

	// Rolling success window, reset every 100 attempts.
	SuccessCount int
	AttemptCount int

	Healing    bool
	Metastasis bool
	Saturated  bool
	Protected  bool

	Generation    int
	MaxGeneration int

	BlocksTotal      int
	BlocksSinceSpawn int
	SpawnThreshold   int

	StallCount   int
	FailedSpawns int

	ChildrenSpawned     int
	HasSpawnedChild     bool
	LastChildSpawnHours float64
}

func clampRange(r int) int {
	if r < 1 {
		return 1
	}
	if r > 128 {
		return 128
	}
	return r
}

func clampAmount(a int) int {
	if a < 1 {
		return 1
	}
	if a > 100 {
		return 100
	}
	return a
}

func startRadius(rng int) float64 {
	if rng < 3 {
		return float64(rng)
	}
	return 3
}

func effectiveAmount(amount int, speedMultiplier float64) int {
	n := int(float64(amount) * speedMultiplier)
	if n < 1 {
		n = 1
	}
	return n
}
