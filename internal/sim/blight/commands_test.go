package blight

import (
	"testing"

	"blightworld.ai/internal/protocol"
)

func runCommand(t *testing.T, e *Engine, cmd protocol.CommandMsg) protocol.ResultMsg {
	t.Helper()
	resp := make(chan protocol.ResultMsg, 1)
	e.StepOnce([]CommandEnvelope{{Cmd: cmd, Resp: resp}})
	select {
	case res := <-resp:
		return res
	default:
		t.Fatal("no command result")
		return protocol.ResultMsg{}
	}
}

func TestCommand_PlaceSourceDefaults(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 31}, cats.Blocks.Index["GRASS"])

	pos := [3]int{5, 10, 5}
	res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &pos})
	if !res.OK {
		t.Fatalf("place failed: %s %s", res.Code, res.Message)
	}

	s, ok := e.registry.Get(SourceID(res.ID))
	if !ok {
		t.Fatal("source not registered")
	}
	if s.Range != e.cfg.DefaultRange || s.Amount != e.cfg.DefaultAmount {
		t.Fatalf("defaults not applied: range=%d amount=%d", s.Range, s.Amount)
	}
	if !s.Protected {
		t.Fatal("placed sources must be protected")
	}
	if s.CurrentRadius != 3 {
		t.Fatalf("start radius %f, want 3", s.CurrentRadius)
	}
	if s.Generation != 0 {
		t.Fatalf("generation %d, want 0", s.Generation)
	}
}

func TestCommand_PlaceOnAirRejected(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, w := newStubEngine(t, EngineConfig{Seed: 32}, cats.Blocks.Index["GRASS"])

	pos := [3]int{1, 1, 1}
	w.SetBlock(Vec3i{X: 1, Y: 1, Z: 1}, 0)
	res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &pos})
	if res.OK || res.Code != protocol.ErrInvalidTarget {
		t.Fatalf("got %+v, want %s", res, protocol.ErrInvalidTarget)
	}
}

func TestCommand_PlaceDuplicateRejected(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 33}, cats.Blocks.Index["GRASS"])

	pos := [3]int{2, 8, 2}
	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &pos}); !res.OK {
		t.Fatalf("first place failed: %+v", res)
	}
	res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceHealer, Pos: &pos})
	if res.OK || res.Code != protocol.ErrConflict {
		t.Fatalf("got %+v, want %s", res, protocol.ErrConflict)
	}
}

func TestCommand_PlaceFullOfProtectedRejected(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 34, MaxSources: 1}, cats.Blocks.Index["GRASS"])

	p1 := [3]int{0, 8, 0}
	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &p1}); !res.OK {
		t.Fatalf("first place failed: %+v", res)
	}

	// The only occupant is protected, so nothing can be evicted.
	p2 := [3]int{9, 8, 9}
	res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &p2})
	if res.OK || res.Code != protocol.ErrFull {
		t.Fatalf("got %+v, want %s", res, protocol.ErrFull)
	}
}

func TestCommand_RemoveSource(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 35}, cats.Blocks.Index["GRASS"])

	pos := [3]int{3, 8, 3}
	placed := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &pos})
	if !placed.OK {
		t.Fatalf("place failed: %+v", placed)
	}

	res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdRemoveSource, ID: placed.ID})
	if !res.OK {
		t.Fatalf("remove failed: %+v", res)
	}
	if e.registry.Len() != 0 {
		t.Fatal("source still registered")
	}

	res = runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdRemoveSource, ID: placed.ID})
	if res.OK || res.Code != protocol.ErrNotFound {
		t.Fatalf("got %+v, want %s", res, protocol.ErrNotFound)
	}
}

func TestCommand_RemoveByPosition(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 36}, cats.Blocks.Index["GRASS"])

	pos := [3]int{4, 8, 4}
	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &pos}); !res.OK {
		t.Fatalf("place failed: %+v", res)
	}
	res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdRemoveSource, Pos: &pos})
	if !res.OK {
		t.Fatalf("remove by pos failed: %+v", res)
	}
}

func TestCommand_SpawnRift(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 37}, cats.Blocks.Index["GRASS"])

	startTick := e.Tick()
	pos := [3]int{7, 9, 7}
	res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdSpawnRift, Pos: &pos})
	if !res.OK {
		t.Fatalf("spawn rift failed: %+v", res)
	}
	if len(e.rifts) != 1 {
		t.Fatalf("rifts %d, want 1", len(e.rifts))
	}
	r := e.rifts[0]
	if r.Range != e.cfg.RiftRange || r.Amount != e.cfg.RiftAmount {
		t.Fatalf("rift params %+v not from tuning", r)
	}
	if r.ExpiresTick != startTick+uint64(e.cfg.RiftTTLTicks) {
		t.Fatalf("expires %d, want %d", r.ExpiresTick, startTick+uint64(e.cfg.RiftTTLTicks))
	}
}

func TestCommand_PauseResume(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 38}, cats.Blocks.Index["STONE"])

	pos := [3]int{0, 8, 0}
	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPlaceSource, Pos: &pos}); !res.OK {
		t.Fatalf("place failed: %+v", res)
	}

	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdPause}); !res.OK {
		t.Fatalf("pause failed: %+v", res)
	}

	before := e.Tick()
	for i := 0; i < 5; i++ {
		e.StepOnce(nil)
		if e.Metrics().TickConverted != 0 {
			t.Fatal("conversions while paused")
		}
	}
	if e.Tick() != before+5 {
		t.Fatal("tick must advance while paused")
	}

	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdResume}); !res.OK {
		t.Fatalf("resume failed: %+v", res)
	}
	converted := 0
	for i := 0; i < 10; i++ {
		e.StepOnce(nil)
		converted += e.Metrics().TickConverted
	}
	if converted == 0 {
		t.Fatal("no conversions after resume")
	}
}

func TestCommand_AdvanceTime(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 39}, cats.Blocks.Index["GRASS"])

	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdAdvanceTime, Hours: 5}); !res.OK {
		t.Fatalf("advance failed: %+v", res)
	}
	if got := e.gameHours(); got < 5.0 || got > 5.01 {
		t.Fatalf("game hours %f, want ~5", got)
	}

	// Negative offsets are allowed; consumers tolerate the rollback.
	if res := runCommand(t, e, protocol.CommandMsg{Cmd: protocol.CmdAdvanceTime, Hours: -10}); !res.OK {
		t.Fatalf("rollback failed: %+v", res)
	}
	if got := e.gameHours(); got > 0 {
		t.Fatalf("game hours %f, want negative", got)
	}
}

func TestCommand_UnknownRejected(t *testing.T) {
	cats := loadTestCatalogs(t)
	e, _ := newStubEngine(t, EngineConfig{Seed: 40}, cats.Blocks.Index["GRASS"])

	res := runCommand(t, e, protocol.CommandMsg{Cmd: "DANCE"})
	if res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("got %+v, want %s", res, protocol.ErrBadRequest)
	}
}
