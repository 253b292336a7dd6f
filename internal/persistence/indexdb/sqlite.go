// Package indexdb keeps a queryable SQLite history next to the JSONL logs:
// station stats samples, builder assignments, snapshots and the catalog in
// force. Writes are queued and applied by one goroutine so the simulation
// loop never waits on disk.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/protocol"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/game"
	"stationsim.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStats      atomic.Uint64
	dropAssignment atomic.Uint64
	dropSnapshot   atomic.Uint64
}

var _ game.Indexer = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqStats reqKind = iota + 1
	reqAssignment
	reqSnapshot
)

type req struct {
	kind reqKind

	stats      statsRow
	assignment assignmentRow
	snapshot   snapshotRow
}

type statsRow struct {
	Tick  uint64
	Stats protocol.StationStats
}

type assignmentRow struct {
	Tick     uint64
	CrewID   uint32
	Subject  uint32
	Accepted bool
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	StationID  string
	RunID      string
	Digest     string
	Modules    int
	Extensions int
	Crew       int
}

// QueueStats reports the write queue and how many records were dropped
// because it was full.
type QueueStats struct {
	QueueDepth          int
	QueueCapacity       int
	DropStatsTotal      uint64
	DropAssignmentTotal uint64
	DropSnapshotTotal   uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("empty db path")
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

	s := &SQLiteIndex{db: db, ch: make(chan req, 16384)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
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
		`CREATE TABLE IF NOT EXISTS stats_history (
			tick INTEGER PRIMARY KEY,
			efficiency REAL NOT NULL,
			power_production REAL NOT NULL,
			power_consumption REAL NOT NULL,
			volume REAL NOT NULL,
			occupied_volume REAL NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			crew_id INTEGER NOT NULL,
			subject_id INTEGER NOT NULL,
			accepted INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_crew_tick ON assignments(crew_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			station_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			catalog_digest TEXT NOT NULL,
			modules INTEGER NOT NULL,
			extensions INTEGER NOT NULL,
			crew INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The JSONL tick log remains the source of truth.
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordStats(tick uint64, stats protocol.StationStats) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqStats, stats: statsRow{Tick: tick, Stats: stats}}, &s.dropStats)
}

func (s *SQLiteIndex) RecordAssignment(tick uint64, crewID, subjectID uint32, accepted bool) {
	if s == nil {
		return
	}
	r := assignmentRow{Tick: tick, CrewID: crewID, Subject: subjectID, Accepted: accepted}
	s.enqueue(req{kind: reqAssignment, assignment: r}, &s.dropAssignment)
}

// RecordSnapshot indexes a snapshot file written at path.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		Tick:      snap.Header.Tick,
		Path:      path,
		StationID: snap.Header.StationID,
		RunID:     snap.Header.RunID,
		Digest:    snap.Header.CatalogDigest,
		Modules:   len(snap.Station.Modules),
		Crew:      len(snap.Station.Crew),
	}
	for _, m := range snap.Station.Modules {
		r.Extensions += len(m.Extensions)
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		DropStatsTotal:      s.dropStats.Load(),
		DropAssignmentTotal: s.dropAssignment.Load(),
		DropSnapshotTotal:   s.dropSnapshot.Load(),
	}
}

// UpsertCatalog stores the blueprint catalog and the tuning actually applied,
// each with its digest. It runs synchronously at startup.
func (s *SQLiteIndex) UpsertCatalog(ctx context.Context, cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	bps, err := json.Marshal(cat.All())
	if err != nil {
		return err
	}
	tb, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(tb)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	const upsert = `INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`
	if _, err := tx.ExecContext(ctx, upsert, "blueprints", cat.Digest, string(bps), now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, "tuning", hex.EncodeToString(sum[:]), string(tb), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStats, _ := s.db.Prepare(`INSERT OR REPLACE INTO stats_history(tick,efficiency,power_production,power_consumption,volume,occupied_volume,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertAssignment, _ := s.db.Prepare(`INSERT INTO assignments(tick,crew_id,subject_id,accepted) VALUES(?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,station_id,run_id,catalog_digest,modules,extensions,crew) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertStats, insertAssignment, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
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
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			_ = tx.Rollback()
			tx = nil
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStats:
			st := r.stats.Stats
			raw, _ := json.Marshal(st)
			exec(insertStats,
				int64(r.stats.Tick),
				st.Efficiency,
				st.Production.Power,
				st.Consumption.Power,
				st.Volume,
				st.OccupiedVolume,
				string(raw),
			)
		case reqAssignment:
			a := r.assignment
			exec(insertAssignment, int64(a.Tick), int64(a.CrewID), int64(a.Subject), a.Accepted)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot,
				int64(sn.Tick),
				sn.Path,
				sn.StationID,
				sn.RunID,
				sn.Digest,
				sn.Modules,
				sn.Extensions,
				sn.Crew,
			)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
	commit()
}

// StatsSample is one row of stats_history.
type StatsSample struct {
	Tick  uint64
	Stats protocol.StationStats
}

// StatsHistory returns samples with from <= tick <= to, oldest first.
func (s *SQLiteIndex) StatsHistory(ctx context.Context, from, to uint64) ([]StatsSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, raw_json FROM stats_history WHERE tick >= ? AND tick <= ? ORDER BY tick`,
		int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsSample
	for rows.Next() {
		var (
			tick int64
			raw  string
		)
		if err := rows.Scan(&tick, &raw); err != nil {
			return nil, err
		}
		smp := StatsSample{Tick: uint64(tick)}
		if err := json.Unmarshal([]byte(raw), &smp.Stats); err != nil {
			return nil, fmt.Errorf("stats_history tick %d: %w", tick, err)
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// Assignment is one row of the assignments table.
type Assignment struct {
	Tick     uint64
	CrewID   uint32
	Subject  uint32
	Accepted bool
}

// Assignments returns every recorded builder assignment of crewID in tick
// order.
func (s *SQLiteIndex) Assignments(ctx context.Context, crewID uint32) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, crew_id, subject_id, accepted FROM assignments WHERE crew_id = ? ORDER BY tick, seq`,
		int64(crewID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		var tick, crew, subject int64
		if err := rows.Scan(&tick, &crew, &subject, &a.Accepted); err != nil {
			return nil, err
		}
		a.Tick, a.CrewID, a.Subject = uint64(tick), uint32(crew), uint32(subject)
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the path and tick of the most recent indexed
// snapshot. ok is false when none has been recorded.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (path string, tick uint64, ok bool, err error) {
	var t int64
	err = s.db.QueryRowContext(ctx, `SELECT path, tick FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&path, &t)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return path, uint64(t), true, nil
}

// CatalogDigest returns the digest stored for name ("blueprints" or
// "tuning").
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	return d, err
}
