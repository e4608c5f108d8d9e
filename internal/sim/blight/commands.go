package blight

import (
	"fmt"

	"blightworld.ai/internal/protocol"
)

func (e *Engine) applyCommand(env CommandEnvelope, nowTick uint64) {
	res := e.execCommand(env.Cmd, nowTick)
	res.Type = protocol.TypeResult
	res.ProtocolVersion = protocol.Version
	res.Cmd = env.Cmd.Cmd
	res.Tick = nowTick
	if env.Resp != nil {
		select {
		case env.Resp <- res:
		default:
		}
	}
}

func (e *Engine) execCommand(cmd protocol.CommandMsg, nowTick uint64) protocol.ResultMsg {
	switch cmd.Cmd {
	case protocol.CmdPlaceSource:
		return e.cmdPlace(cmd, false)
	case protocol.CmdPlaceHealer:
		return e.cmdPlace(cmd, true)
	case protocol.CmdRemoveSource:
		return e.cmdRemove(cmd)
	case protocol.CmdSpawnRift:
		return e.cmdSpawnRift(cmd, nowTick)
	case protocol.CmdPause:
		e.paused = true
		return protocol.ResultMsg{OK: true}
	case protocol.CmdResume:
		e.paused = false
		return protocol.ResultMsg{OK: true}
	case protocol.CmdAdvanceTime:
		e.clockOffsetHours += cmd.Hours
		return protocol.ResultMsg{OK: true}
	case protocol.CmdSave:
		if e.snapshotSink == nil {
			return protocol.ResultMsg{Code: protocol.ErrInternal, Message: "no snapshot sink configured"}
		}
		snap := e.ExportSnapshot(nowTick)
		select {
		case e.snapshotSink <- snap:
			return protocol.ResultMsg{OK: true}
		default:
			return protocol.ResultMsg{Code: protocol.ErrInternal, Message: "snapshot sink busy"}
		}
	default:
		return protocol.ResultMsg{Code: protocol.ErrBadRequest, Message: fmt.Sprintf("unknown command %q", cmd.Cmd)}
	}
}

// cmdPlace creates an explicitly placed source: protected, generation 0.
func (e *Engine) cmdPlace(cmd protocol.CommandMsg, healing bool) protocol.ResultMsg {
	if cmd.Pos == nil {
		return protocol.ResultMsg{Code: protocol.ErrBadRequest, Message: "pos required"}
	}
	pos := Vec3i{X: cmd.Pos[0], Y: cmd.Pos[1], Z: cmd.Pos[2]}
	if e.isAir(e.world.GetBlock(pos)) {
		return protocol.ResultMsg{Code: protocol.ErrInvalidTarget, Message: "anchor block is empty"}
	}
	if _, taken := e.registry.At(pos); taken {
		return protocol.ResultMsg{Code: protocol.ErrConflict, Message: "source already exists at position"}
	}

	rng := cmd.Range
	if rng <= 0 {
		rng = e.cfg.DefaultRange
	}
	rng = clampRange(rng)
	amount := cmd.Amount
	if amount <= 0 {
		amount = e.cfg.DefaultAmount
	}
	amount = clampAmount(amount)

	if e.registry.Len() >= e.registry.Cap() {
		if id, ok := e.registry.EvictOne(); ok {
			e.tickEvicted++
			e.audit("EVICT", id, Vec3i{}, "", "")
		}
		if e.registry.Len() >= e.registry.Cap() {
			return protocol.ResultMsg{Code: protocol.ErrFull, Message: "source registry at capacity"}
		}
	}

	s := &Source{
		ID:             e.registry.NewID(),
		Pos:            pos,
		Range:          rng,
		Amount:         amount,
		CurrentRadius:  startRadius(rng),
		Healing:        healing,
		Protected:      true,
		MaxGeneration:  e.cfg.MaxGenerationLevel,
		SpawnThreshold: e.cfg.SpawnThreshold,
	}
	if err := e.registry.Add(s); err != nil {
		return protocol.ResultMsg{Code: protocol.ErrConflict, Message: err.Error()}
	}
	return protocol.ResultMsg{OK: true, ID: uint64(s.ID)}
}

func (e *Engine) cmdRemove(cmd protocol.CommandMsg) protocol.ResultMsg {
	if cmd.ID != 0 {
		if e.registry.Remove(SourceID(cmd.ID)) {
			e.audit("REMOVE", SourceID(cmd.ID), Vec3i{}, "", "")
			return protocol.ResultMsg{OK: true, ID: cmd.ID}
		}
		return protocol.ResultMsg{Code: protocol.ErrNotFound, Message: "no such source"}
	}
	if cmd.Pos != nil {
		pos := Vec3i{X: cmd.Pos[0], Y: cmd.Pos[1], Z: cmd.Pos[2]}
		if s, ok := e.registry.At(pos); ok {
			e.registry.Remove(s.ID)
			e.audit("REMOVE", s.ID, pos, "", "")
			return protocol.ResultMsg{OK: true, ID: uint64(s.ID)}
		}
		return protocol.ResultMsg{Code: protocol.ErrNotFound, Message: "no source at position"}
	}
	return protocol.ResultMsg{Code: protocol.ErrBadRequest, Message: "id or pos required"}
}

func (e *Engine) cmdSpawnRift(cmd protocol.CommandMsg, nowTick uint64) protocol.ResultMsg {
	if cmd.Pos == nil {
		return protocol.ResultMsg{Code: protocol.ErrBadRequest, Message: "pos required"}
	}
	pos := Vec3i{X: cmd.Pos[0], Y: cmd.Pos[1], Z: cmd.Pos[2]}
	e.rifts = append(e.rifts, Rift{
		Pos:         pos,
		Range:       e.cfg.RiftRange,
		Amount:      e.cfg.RiftAmount,
		ExpiresTick: nowTick + uint64(e.cfg.RiftTTLTicks),
	})
	return protocol.ResultMsg{OK: true}
}
