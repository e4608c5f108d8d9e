package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"blightworld.ai/internal/persistence/snapshot"
	"blightworld.ai/internal/protocol"
	"blightworld.ai/internal/sim/blight"
	"blightworld.ai/internal/sim/catalogs"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		ticksDir  = flag.String("ticks", "", "ticks dir containing ticks-*.jsonl.zst (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d height=%d chunks=%d sources=%d regrow=%d rifts=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.Height,
		len(snap.Chunks), len(snap.Sources), len(snap.Regrow), len(snap.Rifts))

	if *ticksDir == "" {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	engine := blight.NewEngine(configFromSnapshot(snap), cats)
	engine.ImportSnapshot(snap)

	startTick := engine.Tick()
	verifyFrom := *fromTick
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	files, err := listTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	var checked uint64
	for _, path := range files {
		if err := replayFile(engine, path, startTick, verifyFrom, *toTick, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if *toTick != 0 && engine.Tick() > *toTick {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
}

func configFromSnapshot(snap snapshot.SnapshotV1) blight.EngineConfig {
	return blight.EngineConfig{
		ID:         snap.Header.WorldID,
		TickRateHz: snap.TickRate,
		Height:     snap.Height,
		Seed:       snap.Seed,
		BoundaryR:  snap.BoundaryR,

		SpeedMultiplier:    snap.SpeedMultiplier,
		MaxSources:         snap.MaxSources,
		MinElevation:       snap.MinElevation,
		DefaultRange:       snap.DefaultRange,
		DefaultAmount:      snap.DefaultAmount,
		MaxGenerationLevel: snap.MaxGenerationLevel,

		SpawnThreshold:          snap.SpawnThreshold,
		SaturationThreshold:     snap.SaturationThreshold,
		LowSuccessThreshold:     snap.LowSuccessThreshold,
		VeryLowSuccessThreshold: snap.VeryLowSuccessThreshold,
		RequireAirContact:       snap.RequireAirContact,
		NoAirContact:            !snap.RequireAirContact,
		RadiusVariation:         snap.RadiusVariation,
		ChildSpawnDelaySeconds:  snap.ChildSpawnDelaySeconds,
		MaxFailedSpawnAttempts:  snap.MaxFailedSpawnAttempts,
		PillarSearchHeight:      snap.PillarSearchHeight,

		RegenerationHours:  snap.RegenerationHours,
		RegrowEveryTicks:   snap.RegrowEveryTicks,
		MaxRegrowsPerCycle: snap.MaxRegrowsPerCycle,

		RiftRange:    snap.RiftRange,
		RiftAmount:   snap.RiftAmount,
		RiftTTLTicks: snap.RiftTTLTicks,

		CleanupEveryTicks:      snap.CleanupEveryTicks,
		SignalsEveryTicks:      snap.SignalsEveryTicks,
		SnapshotEveryTicks:     snap.SnapshotEveryTicks,
		CorruptedChunkPermille: snap.CorruptedChunkPermille,
	}
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(e *blight.Engine, path string, startTick, verifyFrom, toTick uint64, checked *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		var entry blight.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick < startTick {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return nil
		}
		if entry.Tick != e.Tick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", e.Tick(), entry.Tick, filepath.Base(path))
		}

		// SAVE only touches the snapshot sink, which a replay has none of.
		cmds := make([]blight.CommandEnvelope, 0, len(entry.Commands))
		for _, c := range entry.Commands {
			if c.Cmd == protocol.CmdSave {
				continue
			}
			cmds = append(cmds, blight.CommandEnvelope{Cmd: c})
		}

		tick, gotDigest := e.StepOnce(cmds)

		// Sanity check: StepOnce should have stepped the same tick.
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}

		if tick >= verifyFrom {
			*checked++
			if gotDigest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return nil
}
