package blight

import "testing"

func TestSignals_ChunkCorruptedThreshold(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 51}, cats.Blocks.Index["DIRT"])

	// Default 150 permille over a 16x16 footprint: 38.4 blocks.
	e.corruptedCount[ChunkKey{CX: 0, CZ: 0}] = 39
	e.corruptedCount[ChunkKey{CX: 1, CZ: 0}] = 38
	e.refreshSignals(0)

	v := e.Signals()
	if !v.ChunkCorrupted(0, 0) {
		t.Fatal("39 corrupted blocks should flag the chunk")
	}
	if v.ChunkCorrupted(1, 0) {
		t.Fatal("38 corrupted blocks should not flag the chunk")
	}
	if v.ChunkCorrupted(5, 5) {
		t.Fatal("untouched chunk flagged")
	}
}

func TestSignals_CorruptedChunkKeysSorted(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 52}, cats.Blocks.Index["DIRT"])

	for _, k := range []ChunkKey{{CX: 2, CZ: 1}, {CX: -1, CZ: 3}, {CX: 2, CZ: -4}} {
		e.corruptedCount[k] = 100
	}
	e.refreshSignals(0)

	keys := e.Signals().CorruptedChunkKeys()
	if len(keys) != 3 {
		t.Fatalf("keys %d, want 3", len(keys))
	}
	want := []ChunkKey{{CX: -1, CZ: 3}, {CX: 2, CZ: -4}, {CX: 2, CZ: 1}}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: got %+v want %+v", i, keys[i], want[i])
		}
	}
}

func TestSignals_IntensityAt(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 53}, cats.Blocks.Index["GRASS"])

	src := &Source{ID: e.registry.NewID(), Pos: Vec3i{X: 0, Y: 10, Z: 0}, Range: 32, CurrentRadius: 16}
	if err := e.registry.Add(src); err != nil {
		t.Fatalf("add: %v", err)
	}
	e.refreshSignals(0)
	v := e.Signals()

	at := v.IntensityAt(src.Pos)
	near := v.IntensityAt(Vec3i{X: 8, Y: 10, Z: 0})
	far := v.IntensityAt(Vec3i{X: 200, Y: 10, Z: 0})
	if at <= 0 {
		t.Fatal("zero intensity at an active source")
	}
	if near >= at {
		t.Fatal("intensity must decay with distance")
	}
	if far != 0 {
		t.Fatalf("intensity %f beyond 4x radius, want 0", far)
	}
}

func TestSignals_HealingSubtractsAndFloorsAtZero(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 54}, cats.Blocks.Index["GRASS"])

	h := &Source{ID: e.registry.NewID(), Pos: Vec3i{X: 0, Y: 10, Z: 0}, Range: 32, CurrentRadius: 16, Healing: true}
	if err := e.registry.Add(h); err != nil {
		t.Fatalf("add: %v", err)
	}
	e.refreshSignals(0)

	if got := e.Signals().IntensityAt(h.Pos); got != 0 {
		t.Fatalf("healing-only intensity %f, want floor at 0", got)
	}
}

func TestSignals_SaturatedSourcesExcluded(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 55}, cats.Blocks.Index["GRASS"])

	s := &Source{ID: e.registry.NewID(), Pos: Vec3i{X: 0, Y: 10, Z: 0}, Range: 32, CurrentRadius: 16, Saturated: true}
	if err := e.registry.Add(s); err != nil {
		t.Fatalf("add: %v", err)
	}
	e.refreshSignals(0)

	if got := e.Signals().IntensityAt(s.Pos); got != 0 {
		t.Fatalf("saturated source still radiates: %f", got)
	}
}
