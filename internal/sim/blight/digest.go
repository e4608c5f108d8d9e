package blight

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// stateDigest folds the full simulation state into a hex digest. Two
// engines with the same seed and command stream must produce identical
// digests every tick; the replay tooling and the determinism tests both
// hang off this.
func (e *Engine) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, nowTick)
	writeU64(h, &tmp, uint64(e.cfg.Seed))
	h.Write([]byte{boolByte(e.paused)})
	writeF64(h, &tmp, e.clockOffsetHours)
	writeU64(h, &tmp, e.registry.NextIDCounter())

	// Chunks (sorted keys).
	for _, k := range e.chunks.LoadedChunkKeys() {
		writeU64(h, &tmp, uint64(int64(k.CX)))
		writeU64(h, &tmp, uint64(int64(k.CZ)))
		ch, _ := e.chunks.ChunkAt(k)
		d := ch.Digest()
		h.Write(d[:])
	}

	// Sources (ascending id).
	for _, s := range e.registry.Active() {
		writeU64(h, &tmp, uint64(s.ID))
		writeU64(h, &tmp, uint64(s.ParentID))
		writeVec(h, &tmp, s.Pos)
		writeU64(h, &tmp, uint64(int64(s.Range)))
		writeU64(h, &tmp, uint64(int64(s.Amount)))
		writeF64(h, &tmp, s.CurrentRadius)
		writeU64(h, &tmp, uint64(int64(s.SuccessCount)))
		writeU64(h, &tmp, uint64(int64(s.AttemptCount)))
		h.Write([]byte{
			boolByte(s.Healing),
			boolByte(s.Metastasis),
			boolByte(s.Saturated),
			boolByte(s.Protected),
			boolByte(s.HasSpawnedChild),
		})
		writeU64(h, &tmp, uint64(int64(s.Generation)))
		writeU64(h, &tmp, uint64(int64(s.MaxGeneration)))
		writeU64(h, &tmp, uint64(int64(s.BlocksTotal)))
		writeU64(h, &tmp, uint64(int64(s.BlocksSinceSpawn)))
		writeU64(h, &tmp, uint64(int64(s.SpawnThreshold)))
		writeU64(h, &tmp, uint64(int64(s.StallCount)))
		writeU64(h, &tmp, uint64(int64(s.FailedSpawns)))
		writeU64(h, &tmp, uint64(int64(s.ChildrenSpawned)))
		writeF64(h, &tmp, s.LastChildSpawnHours)
	}

	// Regrow queue (queue order is deterministic).
	for _, en := range e.regrow {
		writeVec(h, &tmp, en.Pos)
		h.Write([]byte(en.RevertTo))
		writeF64(h, &tmp, en.RecordedHours)
	}

	// Rifts (insertion order).
	for _, r := range e.rifts {
		writeVec(h, &tmp, r.Pos)
		writeU64(h, &tmp, uint64(int64(r.Range)))
		writeU64(h, &tmp, uint64(int64(r.Amount)))
		writeU64(h, &tmp, r.ExpiresTick)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}

func writeVec(h hash.Hash, tmp *[8]byte, v Vec3i) {
	writeU64(h, tmp, uint64(int64(v.X)))
	writeU64(h, tmp, uint64(int64(v.Y)))
	writeU64(h, tmp, uint64(int64(v.Z)))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
