package blight

import "testing"

func TestRegistry_CapAndDuplicates(t *testing.T) {
	r := NewRegistry(2)

	a := &Source{ID: r.NewID(), Pos: Vec3i{X: 1}}
	b := &Source{ID: r.NewID(), Pos: Vec3i{X: 2}}
	if err := r.Add(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := r.Add(b); err != nil {
		t.Fatalf("add b: %v", err)
	}

	dup := &Source{ID: r.NewID(), Pos: Vec3i{X: 1}}
	if err := r.Add(dup); err != ErrDuplicatePosition {
		t.Fatalf("dup position: got %v", err)
	}

	c := &Source{ID: r.NewID(), Pos: Vec3i{X: 3}}
	if err := r.Add(c); err != ErrRegistryFull {
		t.Fatalf("full registry: got %v", err)
	}
}

func TestRegistry_ActiveSortedByID(t *testing.T) {
	r := NewRegistry(8)
	for _, x := range []int{5, 1, 9, 3} {
		s := &Source{ID: r.NewID(), Pos: Vec3i{X: x}}
		if err := r.Add(s); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	act := r.Active()
	for i := 1; i < len(act); i++ {
		if act[i-1].ID >= act[i].ID {
			t.Fatalf("not sorted by id: %v >= %v", act[i-1].ID, act[i].ID)
		}
	}
}

func TestRegistry_EvictionOrder(t *testing.T) {
	r := NewRegistry(8)
	add := func(s *Source) *Source {
		s.ID = r.NewID()
		if err := r.Add(s); err != nil {
			t.Fatalf("add: %v", err)
		}
		return s
	}

	protected := add(&Source{Pos: Vec3i{X: 1}, Protected: true, Saturated: true})
	healer := add(&Source{Pos: Vec3i{X: 2}, Healing: true})
	satDeep := add(&Source{Pos: Vec3i{X: 3}, Saturated: true, Generation: 3})
	satShallow := add(&Source{Pos: Vec3i{X: 4}, Saturated: true, Generation: 1})
	busy := add(&Source{Pos: Vec3i{X: 5}, Generation: 2, BlocksTotal: 900})
	quiet := add(&Source{Pos: Vec3i{X: 6}, Generation: 2, BlocksTotal: 10})

	// Saturated first, deepest generation first within that.
	id, ok := r.EvictOne()
	if !ok || id != satDeep.ID {
		t.Fatalf("evict 1: got %v want %v", id, satDeep.ID)
	}
	id, ok = r.EvictOne()
	if !ok || id != satShallow.ID {
		t.Fatalf("evict 2: got %v want %v", id, satShallow.ID)
	}
	// Then unsaturated: more converted blocks evicts first.
	id, ok = r.EvictOne()
	if !ok || id != busy.ID {
		t.Fatalf("evict 3: got %v want %v", id, busy.ID)
	}
	id, ok = r.EvictOne()
	if !ok || id != quiet.ID {
		t.Fatalf("evict 4: got %v want %v", id, quiet.ID)
	}

	// Protected and healing sources are never evicted.
	if _, ok := r.EvictOne(); ok {
		t.Fatal("protected/healing sources must not be evicted")
	}
	if _, found := r.Get(protected.ID); !found {
		t.Fatal("protected source gone")
	}
	if _, found := r.Get(healer.ID); !found {
		t.Fatal("healing source gone")
	}
}

func TestRegistry_CleanupSaturated(t *testing.T) {
	r := NewRegistry(16)
	for i := 0; i < 6; i++ {
		s := &Source{ID: r.NewID(), Pos: Vec3i{X: i}, Saturated: true}
		if err := r.Add(s); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// Below half occupancy: no-op.
	if n := r.CleanupSaturated(); n != 0 {
		t.Fatalf("cleanup below half cap: removed %d", n)
	}

	for i := 6; i < 12; i++ {
		s := &Source{ID: r.NewID(), Pos: Vec3i{X: i}}
		if err := r.Add(s); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// 12 of 16 occupied, 6 saturated candidates: removes a quarter.
	before := r.Len()
	n := r.CleanupSaturated()
	if n != 1 {
		t.Fatalf("cleanup removed %d, want 1", n)
	}
	if r.Len() != before-1 {
		t.Fatalf("len %d, want %d", r.Len(), before-1)
	}
}

func TestRegistry_NextIDCounterSurvivesRestore(t *testing.T) {
	r := NewRegistry(4)
	r.NewID()
	r.NewID()
	n := r.NextIDCounter()

	r2 := NewRegistry(4)
	r2.SetNextIDCounter(n)
	if id := r2.NewID(); id != SourceID(n+1) {
		t.Fatalf("restored counter: got %v want %v", id, n+1)
	}
}
