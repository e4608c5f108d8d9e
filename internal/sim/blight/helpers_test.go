package blight

import (
	"testing"

	"blightworld.ai/internal/sim/catalogs"
)

func loadTestCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

// mapWorld is a scripted BlockWorld: explicit blocks over a uniform
// default, so tests control exactly what every probe sees.
type mapWorld struct {
	def uint16
	m   map[Vec3i]uint16
}

func newMapWorld(def uint16) *mapWorld {
	return &mapWorld{def: def, m: map[Vec3i]uint16{}}
}

func (w *mapWorld) GetBlock(pos Vec3i) uint16 {
	if b, ok := w.m[pos]; ok {
		return b
	}
	return w.def
}

func (w *mapWorld) SetBlock(pos Vec3i, b uint16) {
	w.m[pos] = b
}

func newStubEngine(t *testing.T, cfg EngineConfig, def uint16) (*Engine, *mapWorld) {
	t.Helper()
	cats := loadTestCatalogs(t)
	w := newMapWorld(def)
	e := NewEngine(cfg, cats, WithBlockWorld(w))
	return e, w
}

// surfaceY walks a generated column from the top down to the first solid
// block.
func surfaceY(e *Engine, x, z int) int {
	for y := e.cfg.Height - 1; y >= 0; y-- {
		if !e.isAir(e.world.GetBlock(Vec3i{X: x, Y: y, Z: z})) {
			return y
		}
	}
	return 0
}
