package snapshot

import (
	"path/filepath"
	"testing"
)

func sampleSnapshot() SnapshotV1 {
	return SnapshotV1{
		Header:    Header{Version: 1, WorldID: "w1", Tick: 77},
		Seed:      1337,
		TickRate:  5,
		Height:    64,
		BoundaryR: 4000,
		Paused:    true,
		RNGState:  0xdeadbeefcafe,
		Chunks: []ChunkV1{
			{CX: 0, CZ: 0, Height: 64, Blocks: make([]uint16, 16*16*64)},
			{CX: -2, CZ: 3, Height: 64, Blocks: make([]uint16, 16*16*64)},
		},
		Sources: []SourceV1{
			{ID: 4, Pos: [3]int{1, 10, 1}, Range: 32, Amount: 4, CurrentRadius: 7.5, Protected: true},
			{ID: 9, ParentID: 4, Pos: [3]int{40, 12, -3}, Range: 28, Amount: 4, CurrentRadius: 3, Generation: 1, Metastasis: true},
		},
		Regrow: []RegrowV1{
			{Pos: [3]int{1, 9, 1}, RevertTo: "DIRT", RecordedHours: 0.4},
			{Pos: [3]int{2, 9, 1}, RevertTo: "none", RecordedHours: 0.5},
		},
		Rifts:    []RiftV1{{Pos: [3]int{5, 8, 5}, Range: 8, Amount: 6, ExpiresTick: 600}},
		Counters: CountersV1{NextSource: 10},
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "77.snap.zst")
	want := sampleSnapshot()
	want.Chunks[0].Blocks[123] = 14

	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.Header != want.Header {
		t.Fatalf("header %+v, want %+v", got.Header, want.Header)
	}
	if got.Seed != want.Seed || !got.Paused {
		t.Fatal("scalar fields lost")
	}
	if got.RNGState != want.RNGState {
		t.Fatalf("rng state %x, want %x", got.RNGState, want.RNGState)
	}
	if len(got.Chunks) != 2 || got.Chunks[0].Blocks[123] != 14 {
		t.Fatal("chunk payload lost")
	}
	if len(got.Sources) != 2 || got.Sources[1].ParentID != 4 || !got.Sources[1].Metastasis {
		t.Fatalf("sources lost: %+v", got.Sources)
	}
	if len(got.Regrow) != 2 || got.Regrow[1].RevertTo != "none" {
		t.Fatal("regrow lost")
	}
	if len(got.Rifts) != 1 || got.Rifts[0].ExpiresTick != 600 {
		t.Fatal("rifts lost")
	}
	if got.Counters.NextSource != 10 {
		t.Fatalf("counter %d, want 10", got.Counters.NextSource)
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	want := sampleSnapshot()
	data, err := EncodeSnapshot(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Header != want.Header || got.Counters != want.Counters {
		t.Fatalf("roundtrip mismatch: %+v", got.Header)
	}
	if len(got.Sources) != len(want.Sources) {
		t.Fatal("sources lost")
	}
}

func TestReadSnapshot_MissingFile(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeSnapshot_Garbage(t *testing.T) {
	if _, err := DecodeSnapshot([]byte("{}\nnot gob")); err == nil {
		t.Fatal("expected error")
	}
}
