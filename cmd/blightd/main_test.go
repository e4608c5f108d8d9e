package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blightworld.ai/internal/persistence/snapshot"
)

func writeTestSnapshot(t *testing.T, path, worldID string, tick uint64) {
	t.Helper()
	snap := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: 1, WorldID: worldID, Tick: tick},
		Seed:     1337,
		TickRate: 5,
		Height:   64,
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "42.snap.zst")
	writeTestSnapshot(t, path, "w1", 42)

	snap, err := loadSnapshot(path, "w1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Header.Tick != 42 {
		t.Fatalf("tick %d, want 42", snap.Header.Tick)
	}
}

func TestLoadSnapshot_WorldMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "42.snap.zst")
	writeTestSnapshot(t, path, "w1", 42)

	// A mismatched world id is an error result, not a crash: the caller
	// decides whether an auto-discovered snapshot falls back to a fresh
	// engine or an explicitly requested one aborts startup.
	if _, err := loadSnapshot(path, "other_world"); err == nil {
		t.Fatal("expected world id mismatch error")
	} else if !strings.Contains(err.Error(), "world id mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadSnapshot_GarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "42.snap.zst")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadSnapshot(path, "w1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLatestSnapshot(t *testing.T) {
	worldDir := t.TempDir()
	snapDir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if got := latestSnapshot(worldDir); got != "" {
		t.Fatalf("empty dir: got %q", got)
	}

	for _, name := range []string{"100.snap.zst", "900.snap.zst", "5000.snap.zst", "junk.txt"} {
		if err := os.WriteFile(filepath.Join(snapDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	want := filepath.Join(snapDir, "5000.snap.zst")
	if got := latestSnapshot(worldDir); got != want {
		t.Fatalf("latest %q, want %q", got, want)
	}
}
