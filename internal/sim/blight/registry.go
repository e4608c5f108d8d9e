package blight

import (
	"errors"
	"sort"
)

var (
	ErrRegistryFull      = errors.New("source registry at capacity")
	ErrDuplicatePosition = errors.New("source already exists at position")
)

// Registry owns the canonical source collection: identity assignment, the
// population cap, and the eviction order that keeps the cap honest.
type Registry struct {
	cap    int
	byID   map[SourceID]*Source
	byPos  map[Vec3i]SourceID
	nextID uint64
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 64
	}
	return &Registry{
		cap:   capacity,
		byID:  map[SourceID]*Source{},
		byPos: map[Vec3i]SourceID{},
	}
}

func (r *Registry) Cap() int { return r.cap }
func (r *Registry) Len() int { return len(r.byID) }

// NewID hands out the next identity. The counter is part of the snapshot
// so restored worlds never reuse an id.
func (r *Registry) NewID() SourceID {
	r.nextID++
	return SourceID(r.nextID)
}

func (r *Registry) NextIDCounter() uint64     { return r.nextID }
func (r *Registry) SetNextIDCounter(n uint64) { r.nextID = n }

func (r *Registry) Add(s *Source) error {
	if _, taken := r.byPos[s.Pos]; taken {
		return ErrDuplicatePosition
	}
	if len(r.byID) >= r.cap {
		return ErrRegistryFull
	}
	r.byID[s.ID] = s
	r.byPos[s.Pos] = s.ID
	return nil
}

func (r *Registry) Get(id SourceID) (*Source, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) At(pos Vec3i) (*Source, bool) {
	id, ok := r.byPos[pos]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

func (r *Registry) Remove(id SourceID) bool {
	s, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.byPos, s.Pos)
	return true
}

func (r *Registry) RemoveWhere(pred func(*Source) bool) int {
	var doomed []SourceID
	for id, s := range r.byID {
		if pred(s) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		r.Remove(id)
	}
	return len(doomed)
}

// Active returns every source in ascending id order. Iteration order is
// part of the determinism contract; map order must never leak out.
func (r *Registry) Active() []*Source {
	out := make([]*Source, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EvictOne removes the least valuable evictable source: saturated first,
// then deepest generation, then most blocks converted. Protected and
// healing sources are never candidates. Returns false when nothing could
// be evicted.
func (r *Registry) EvictOne() (SourceID, bool) {
	cands := r.evictionCandidates(func(s *Source) bool { return true })
	if len(cands) == 0 {
		return 0, false
	}
	r.Remove(cands[0].ID)
	return cands[0].ID, true
}

// CleanupSaturated is the periodic purge: only acts when occupancy is past
// half the cap, and removes at most a quarter of the saturated candidates
// in one pass so the population drains gradually.
func (r *Registry) CleanupSaturated() int {
	if len(r.byID) <= r.cap/2 {
		return 0
	}
	cands := r.evictionCandidates(func(s *Source) bool { return s.Saturated })
	if len(cands) == 0 {
		return 0
	}
	limit := len(cands) / 4
	if limit < 1 {
		limit = 1
	}
	for i := 0; i < limit; i++ {
		r.Remove(cands[i].ID)
	}
	return limit
}

func (r *Registry) evictionCandidates(extra func(*Source) bool) []*Source {
	var cands []*Source
	for _, s := range r.byID {
		if s.Protected || s.Healing {
			continue
		}
		if !extra(s) {
			continue
		}
		cands = append(cands, s)
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Saturated != b.Saturated {
			return a.Saturated
		}
		if a.Generation != b.Generation {
			return a.Generation > b.Generation
		}
		if a.BlocksTotal != b.BlocksTotal {
			return a.BlocksTotal > b.BlocksTotal
		}
		return a.ID < b.ID
	})
	return cands
}
