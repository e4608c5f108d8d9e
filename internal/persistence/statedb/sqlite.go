package statedb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"blightworld.ai/internal/persistence/snapshot"
	"blightworld.ai/internal/sim/blight"
	"blightworld.ai/internal/sim/catalogs"
	"blightworld.ai/internal/sim/tuning"
)

// SQLiteState is the durable store: an async single-writer index for tick
// and audit rows, plus a synchronous named-blob table backing snapshot
// persistence. All writes funnel through one goroutine; SQLite with WAL
// and a single connection keeps that simple and fast.
type SQLiteState struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqBlob
)

type req struct {
	kind reqKind

	tick     blight.TickLogEntry
	audit    blight.AuditEntry
	snapshot snapshotRow
	blob     blobRow
}

type snapshotRow struct {
	Tick    uint64
	Name    string
	Seed    int64
	Height  int
	Chunks  int
	Sources int
	Regrow  int
}

type blobRow struct {
	Name string
	Data []byte
}

func OpenSQLite(path string) (*SQLiteState, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteState{
		db: db,
		// High buffer: audit writes burst when a big front converts many
		// blocks in one tick.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			sources INTEGER NOT NULL,
			converted INTEGER NOT NULL,
			healed INTEGER NOT NULL,
			reverted INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			evicted INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			source INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block TEXT,
			to_block TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_source_tick ON audits(source, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			seed INTEGER NOT NULL,
			height INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			sources INTEGER NOT NULL,
			regrow INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blobs (
			name TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteState) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteState) WriteTick(entry blight.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (s *SQLiteState) WriteAudit(entry blight.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
	}
	return nil
}

// SaveBlob queues a named payload for durable storage. Last write wins.
func (s *SQLiteState) SaveBlob(name string, data []byte) {
	if s == nil || s.closed.Load() || name == "" {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case s.ch <- req{kind: reqBlob, blob: blobRow{Name: name, Data: cp}}:
	default:
	}
}

// LoadBlob reads a named payload. Returns (nil, false) when absent.
func (s *SQLiteState) LoadBlob(name string) ([]byte, bool) {
	if s == nil || name == "" {
		return nil, false
	}
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM blobs WHERE name = ?`, name).Scan(&data)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *SQLiteState) RecordSnapshot(name string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:    snap.Header.Tick,
		Name:    name,
		Seed:    snap.Seed,
		Height:  snap.Height,
		Chunks:  len(snap.Chunks),
		Sources: len(snap.Sources),
		Regrow:  len(snap.Regrow),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// LatestSnapshotName returns the blob name of the most recent recorded
// snapshot.
func (s *SQLiteState) LatestSnapshotName() (string, bool) {
	if s == nil {
		return "", false
	}
	var name string
	err := s.db.QueryRow(`SELECT name FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&name)
	if err != nil {
		return "", false
	}
	return name, true
}

// UpsertCatalogs records the effective catalogs and tuning so a data dir
// is self-describing.
func (s *SQLiteState) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	raw := map[string][]byte{}
	read := func(name, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		raw[name] = b
	}
	if configDir != "" {
		read("blocks_defs", filepath.Join(configDir, "blocks.json"))
		read("conversions", filepath.Join(configDir, "conversions.json"))
		read("healing", filepath.Join(configDir, "healing.json"))
	}

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b := raw["blocks_defs"]; len(b) > 0 {
		rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	if b := raw["conversions"]; len(b) > 0 {
		rows = append(rows, kv{name: "conversions", digest: cats.Conversions.Digest, json: b})
	}
	if b := raw["healing"]; len(b) > 0 {
		rows = append(rows, kv{name: "healing", digest: cats.Healing.Digest, json: b})
	}
	{
		// Tuning: store the values we actually apply (canonical JSON).
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteState) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,sources,converted,healed,reverted,spawned,evicted,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,kind,source,x,y,z,from_block,to_block,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,name,seed,height,chunks,sources,regrow) VALUES(?,?,?,?,?,?,?)`)
	insertBlob, _ := s.db.Prepare(`INSERT OR REPLACE INTO blobs(name,data,updated_at) VALUES(?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
		if insertBlob != nil {
			_ = insertBlob.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					int64(r.tick.Tick),
					r.tick.Digest,
					r.tick.Sources,
					r.tick.Converted,
					r.tick.Healed,
					r.tick.Reverted,
					r.tick.Spawned,
					r.tick.Evicted,
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					int64(a.Tick),
					seq,
					a.Kind,
					int64(a.Source),
					a.Pos[0], a.Pos[1], a.Pos[2],
					a.From,
					a.To,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick),
					sn.Name,
					sn.Seed,
					sn.Height,
					sn.Chunks,
					sn.Sources,
					sn.Regrow,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqBlob:
			if insertBlob != nil {
				if _, err := tx.Stmt(insertBlob).Exec(
					r.blob.Name,
					r.blob.Data,
					time.Now().UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Blobs are snapshots; make them durable promptly.
			commit()
		}
		flushIfNeeded()
	}

	commit()
}
