package blight

// RandomSource feeds every angle, distance, and selection draw in the
// engine. Both methods must be uniform; determinism across runs follows
// from seeding it identically.
type RandomSource interface {
	UniformInt(bound int) int
	UniformFloat() float64
}

// StatefulRandomSource additionally exposes the stream position, so
// snapshots can capture it and a restored engine continues the exact
// draw sequence the original would have produced.
type StatefulRandomSource interface {
	RandomSource
	State() uint64
	SetState(state uint64)
}

// splitRand is a splitmix64 generator: the entire stream position is one
// word of state, advanced by a fixed odd constant and finalized through
// the same avalanche mix the worldgen hashing uses.
type splitRand struct {
	state uint64
}

func NewRand(seed int64) RandomSource {
	return &splitRand{state: uint64(seed)}
}

func (s *splitRand) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (s *splitRand) UniformInt(bound int) int {
	if bound <= 0 {
		return 0
	}
	return int(s.next() % uint64(bound))
}

func (s *splitRand) UniformFloat() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

func (s *splitRand) State() uint64         { return s.state }
func (s *splitRand) SetState(state uint64) { s.state = state }
