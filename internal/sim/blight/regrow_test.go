package blight

import "testing"

func TestRegrow_RevertsAfterElapsedHours(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, w := newStubEngine(t, EngineConfig{Seed: 21}, cats.Blocks.Index["DIRT"])

	pos := Vec3i{X: 5, Y: 10, Z: 5}
	w.SetBlock(pos, cats.Blocks.Index["BLIGHT_SOIL"])
	e.enqueueRegrow(pos, "DIRT")

	// Not due yet.
	e.stepRegrow()
	if len(e.regrow) != 1 {
		t.Fatal("entry reverted early")
	}

	e.clockOffsetHours = 3.0 // past the 2h default
	e.stepRegrow()
	if len(e.regrow) != 0 {
		t.Fatal("entry not drained")
	}
	if got := w.GetBlock(pos); got != cats.Blocks.Index["DIRT"] {
		t.Fatalf("block %d, want DIRT", got)
	}
	if e.tickReverted != 1 {
		t.Fatalf("tick reverted %d, want 1", e.tickReverted)
	}

	// Reversion is unconditional but runs exactly once per entry.
	w.SetBlock(pos, cats.Blocks.Index["BLIGHT_SOIL"])
	e.stepRegrow()
	if got := w.GetBlock(pos); got != cats.Blocks.Index["BLIGHT_SOIL"] {
		t.Fatal("drained entry reverted again")
	}
}

func TestRegrow_NoneRevertsToAir(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, w := newStubEngine(t, EngineConfig{Seed: 22}, cats.Blocks.Index["DIRT"])

	pos := Vec3i{X: 1, Y: 20, Z: 1}
	w.SetBlock(pos, cats.Blocks.Index["BLIGHT_GROWTH"])
	e.enqueueRegrow(pos, RevertNone)

	e.clockOffsetHours = 3.0
	e.stepRegrow()
	if got := w.GetBlock(pos); got != 0 {
		t.Fatalf("block %d, want air", got)
	}
}

func TestRegrow_NegativeElapsedRestamps(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 23}, cats.Blocks.Index["DIRT"])

	e.clockOffsetHours = 5.0
	e.enqueueRegrow(Vec3i{X: 2, Y: 12, Z: 2}, "DIRT")

	// Admin clock moved backward: the entry is re-stamped, not reverted
	// and not stuck waiting out a huge interval.
	e.clockOffsetHours = 0.0
	e.stepRegrow()
	if len(e.regrow) != 1 {
		t.Fatal("entry lost after clock rollback")
	}
	if e.regrow[0].RecordedHours != 0.0 {
		t.Fatalf("recorded hours %f, want re-stamp at 0", e.regrow[0].RecordedHours)
	}

	e.clockOffsetHours = 3.0
	e.stepRegrow()
	if len(e.regrow) != 0 {
		t.Fatal("re-stamped entry never reverted")
	}
}

func TestRegrow_CyclesAreCapped(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 24}, cats.Blocks.Index["BLIGHT_SOIL"])

	for i := 0; i < 120; i++ {
		e.enqueueRegrow(Vec3i{X: i, Y: 10, Z: 0}, "DIRT")
	}

	e.clockOffsetHours = 3.0
	e.stepRegrow()
	if len(e.regrow) != 70 {
		t.Fatalf("after cycle 1: %d pending, want 70", len(e.regrow))
	}
	e.stepRegrow()
	if len(e.regrow) != 20 {
		t.Fatalf("after cycle 2: %d pending, want 20", len(e.regrow))
	}
	e.stepRegrow()
	if len(e.regrow) != 0 {
		t.Fatalf("after cycle 3: %d pending, want 0", len(e.regrow))
	}
}
