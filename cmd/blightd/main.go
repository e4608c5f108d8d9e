package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "blightworld.ai/internal/persistence/log"
	"blightworld.ai/internal/persistence/snapshot"
	"blightworld.ai/internal/persistence/statedb"
	"blightworld.ai/internal/sim/blight"
	"blightworld.ai/internal/sim/catalogs"
	"blightworld.ai/internal/sim/tuning"
	"blightworld.ai/internal/transport/status"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "blight_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite state store (tick/audit index + blobs)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		enablePprof = flag.Bool("pprof", false, "expose pprof endpoints")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[blightd] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	var db *statedb.SQLiteState
	if !*disableDB {
		db, err = statedb.OpenSQLite(filepath.Join(worldDir, "state.db"))
		if err != nil {
			logger.Fatalf("open state db: %v", err)
		}
		defer db.Close()
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" && !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	if db != nil {
		if err := db.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("state db: upsert catalogs: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()

	snapCh := make(chan snapshot.SnapshotV1, 2)

	var engine *blight.Engine
	opts := []blight.EngineOption{
		blight.WithTickLogger(multiTickLogger{a: tickLog, b: db}),
		blight.WithAuditLogger(multiAuditLogger{a: auditLog, b: db}),
		blight.WithSnapshotSink(snapCh),
	}

	if snapshotToLoad != "" {
		snap, err := loadSnapshot(snapshotToLoad, *worldID)
		switch {
		case err == nil:
			engine = blight.NewEngine(configFromSnapshot(*worldID, snap), cats, opts...)
			engine.ImportSnapshot(snap)
			logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), engine.Tick())
		case strings.TrimSpace(*snapPath) != "":
			// An explicitly requested snapshot is a hard requirement.
			logger.Fatalf("read snapshot: %v", err)
		default:
			// An auto-discovered snapshot must never keep the host down.
			logger.Printf("snapshot %s unusable (%v); starting fresh", filepath.Base(snapshotToLoad), err)
		}
	}
	if engine == nil {
		engine = blight.NewEngine(configFromTuning(*worldID, *seed, tune), cats, opts...)
	}

	// Snapshot writer: files under <worldDir>/snapshots plus the blob store.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				name := fmt.Sprintf("%d.snap.zst", snap.Header.Tick)
				path := filepath.Join(worldDir, "snapshots", name)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if db != nil {
					if blob, err := snapshot.EncodeSnapshot(snap); err == nil {
						db.SaveBlob("snapshot/"+name, blob)
					}
					db.RecordSnapshot(name, snap)
				}
			}
		}
	}()

	go func() {
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	statusSrv := status.NewServer(engine, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", statusSrv.HealthzHandler())
	mux.HandleFunc("/v1/ws", statusSrv.Handler())
	mux.HandleFunc("/v1/command", statusSrv.CommandHandler())
	mux.HandleFunc("/v1/state", statusSrv.MetricsHandler())
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := engine.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP blightworld_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_tick gauge\n")
		fmt.Fprintf(rw, "blightworld_tick{world=%q} %d\n", *worldID, m.Tick)

		fmt.Fprintf(rw, "# HELP blightworld_sources Current registered sources.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_sources gauge\n")
		fmt.Fprintf(rw, "blightworld_sources{world=%q} %d\n", *worldID, m.Sources)
		fmt.Fprintf(rw, "blightworld_sources{world=%q,kind=%q} %d\n", *worldID, "healing", m.HealingSources)
		fmt.Fprintf(rw, "blightworld_sources{world=%q,kind=%q} %d\n", *worldID, "saturated", m.SaturatedCount)

		fmt.Fprintf(rw, "# HELP blightworld_rifts Active rifts.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_rifts gauge\n")
		fmt.Fprintf(rw, "blightworld_rifts{world=%q} %d\n", *worldID, m.Rifts)

		fmt.Fprintf(rw, "# HELP blightworld_regrow_queue Blocks awaiting regeneration.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_regrow_queue gauge\n")
		fmt.Fprintf(rw, "blightworld_regrow_queue{world=%q} %d\n", *worldID, m.RegrowQueue)

		fmt.Fprintf(rw, "# HELP blightworld_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_loaded_chunks gauge\n")
		fmt.Fprintf(rw, "blightworld_loaded_chunks{world=%q} %d\n", *worldID, m.LoadedChunks)

		fmt.Fprintf(rw, "# HELP blightworld_corrupted_chunks Chunks past the corruption threshold.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_corrupted_chunks gauge\n")
		fmt.Fprintf(rw, "blightworld_corrupted_chunks{world=%q} %d\n", *worldID, m.CorruptedChunks)

		fmt.Fprintf(rw, "# HELP blightworld_tick_blocks Blocks touched last tick.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_tick_blocks gauge\n")
		fmt.Fprintf(rw, "blightworld_tick_blocks{world=%q,op=%q} %d\n", *worldID, "converted", m.TickConverted)
		fmt.Fprintf(rw, "blightworld_tick_blocks{world=%q,op=%q} %d\n", *worldID, "healed", m.TickHealed)
		fmt.Fprintf(rw, "blightworld_tick_blocks{world=%q,op=%q} %d\n", *worldID, "reverted", m.TickReverted)

		fmt.Fprintf(rw, "# HELP blightworld_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_step_ms gauge\n")
		fmt.Fprintf(rw, "blightworld_step_ms{world=%q} %.3f\n", *worldID, m.StepMS)

		fmt.Fprintf(rw, "# HELP blightworld_panics_total Recovered per-source panics.\n")
		fmt.Fprintf(rw, "# TYPE blightworld_panics_total counter\n")
		fmt.Fprintf(rw, "blightworld_panics_total{world=%q} %d\n", *worldID, m.PanicsTotal)
	})
	if *enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func configFromTuning(worldID string, seed int64, t tuning.Tuning) blight.EngineConfig {
	return blight.EngineConfig{
		ID:         worldID,
		TickRateHz: t.TickRateHz,
		Height:     t.Height,
		Seed:       seed,
		BoundaryR:  t.WorldBoundaryR,

		SpeedMultiplier:    t.SpeedMultiplier,
		MaxSources:         t.MaxSources,
		MinElevation:       t.MinElevation,
		DefaultRange:       t.DefaultRange,
		DefaultAmount:      t.DefaultAmount,
		MaxGenerationLevel: t.MaxGenerationLevel,

		SpawnThreshold:          t.SpawnThreshold,
		SaturationThreshold:     t.SaturationThreshold,
		LowSuccessThreshold:     t.LowSuccessThreshold,
		VeryLowSuccessThreshold: t.VeryLowSuccessThreshold,
		RequireAirContact:       t.AirContactRequired(),
		NoAirContact:            !t.AirContactRequired(),
		RadiusVariation:         t.RadiusVariation,
		ChildSpawnDelaySeconds:  t.ChildSpawnDelaySeconds,
		MaxFailedSpawnAttempts:  t.MaxFailedSpawnAttempts,
		PillarSearchHeight:      t.PillarSearchHeight,

		RegenerationHours:  t.RegenerationHours,
		RegrowEveryTicks:   t.RegrowEveryTicks,
		MaxRegrowsPerCycle: t.MaxRegrowsPerCycle,

		RiftRange:    t.RiftRange,
		RiftAmount:   t.RiftAmount,
		RiftTTLTicks: t.RiftTTLTicks,

		CleanupEveryTicks:      t.CleanupEveryTicks,
		SignalsEveryTicks:      t.SignalsEveryTicks,
		SnapshotEveryTicks:     t.SnapshotEveryTicks,
		CorruptedChunkPermille: t.CorruptedChunkPermille,
	}
}

// configFromSnapshot restores the effective tuning the snapshot was taken
// under, so a resume never changes simulation behavior.
func configFromSnapshot(worldID string, snap snapshot.SnapshotV1) blight.EngineConfig {
	return blight.EngineConfig{
		ID:         worldID,
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

// loadSnapshot reads a snapshot file and rejects one taken for another
// world.
func loadSnapshot(path, worldID string) (snapshot.SnapshotV1, error) {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return snapshot.SnapshotV1{}, err
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != worldID {
		return snapshot.SnapshotV1{}, fmt.Errorf("world id mismatch: have %s, snapshot is for %s", worldID, snap.Header.WorldID)
	}
	return snap, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

type multiTickLogger struct {
	a blight.TickLogger
	b *statedb.SQLiteState
}

func (m multiTickLogger) WriteTick(entry blight.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a blight.AuditLogger
	b *statedb.SQLiteState
}

func (m multiAuditLogger) WriteAudit(entry blight.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
