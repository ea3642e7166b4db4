// Package indexdb mirrors audit and award-event logs into SQLite so they can
// be queried without scanning the compressed JSONL files. The JSONL logs stay
// the source of truth; the index drops writes when it falls behind.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"achievements.party/internal/session"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit atomic.Uint64
	dropEvent atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqEvent
)

type req struct {
	kind reqKind

	audit session.AuditEntry
	event session.EventLogEntry
}

// Stats reports queue pressure.
type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropAuditTotal uint64
	DropEventTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
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
	return db, nil
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
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			world_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			subjects TEXT NOT NULL,
			reason TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_world_rev ON audits(world_id, revision);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_achievement ON audits(achievement_id);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			world_id TEXT NOT NULL,
			name TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			late INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_subject ON events(world_id, subject_id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued writes and closes the database.
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

func (s *SQLiteIndex) WriteAudit(entry session.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteEvent(entry session.EventLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: entry}:
	default:
		s.dropEvent.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropAuditTotal: s.dropAudit.Load(),
		DropEventTotal: s.dropEvent.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(at,world_id,revision,actor,action,achievement_id,subjects,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT INTO events(at,world_id,name,achievement_id,subject_id,late) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		commitEvery   = 500
		commitMaxWait = time.Second
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
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-ticker.C:
			commit()
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					a.At.UTC().Format(time.RFC3339Nano),
					a.WorldID,
					int64(a.Revision),
					a.Actor,
					a.Action,
					a.AchievementID,
					strings.Join(a.Subjects, ","),
					a.Reason,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqEvent:
			e := r.event
			late := 0
			if e.Late {
				late = 1
			}
			if insertEvent != nil {
				if _, err := tx.Stmt(insertEvent).Exec(
					e.At.UTC().Format(time.RFC3339Nano),
					e.WorldID,
					e.Name,
					e.AchievementID,
					e.SubjectID,
					late,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery {
			commit()
		}
	}
}
