package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps settings in a single-file SQLite database. Writes are
// synchronous: this is the primary copy of every world's state.
type SQLiteStore struct {
	db   *sql.DB
	once sync.Once
}

func OpenSQLite(path string) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
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
		`CREATE TABLE IF NOT EXISTS settings (
			world_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world_id, key)
		);`,
		`INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Get(worldID, key string) ([]byte, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE world_id = ? AND key = ?`, worldID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", worldID, key, err)
	}
	return []byte(v), true, nil
}

const upsertSetting = `INSERT INTO settings(world_id, key, value, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(world_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (s *SQLiteStore) Put(worldID, key string, value []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(upsertSetting, worldID, key, string(value), now); err != nil {
		return fmt.Errorf("put %s/%s: %w", worldID, key, err)
	}
	return nil
}

// PutMany writes every value in one transaction.
func (s *SQLiteStore) PutMany(worldID string, values map[string][]byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, key := range SortedKeys(values) {
		if _, err := tx.Exec(upsertSetting, worldID, key, string(values[key]), now); err != nil {
			return fmt.Errorf("put %s/%s: %w", worldID, key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Delete(worldID, key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE world_id = ? AND key = ?`, worldID, key)
	return err
}

func (s *SQLiteStore) Keys(worldID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM settings WHERE world_id = ? ORDER BY key`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Worlds lists world ids that have at least one stored value.
func (s *SQLiteStore) Worlds() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT world_id FROM settings ORDER BY world_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpdatedAt returns the last write time of a key.
func (s *SQLiteStore) UpdatedAt(worldID, key string) (time.Time, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT updated_at FROM settings WHERE world_id = ? AND key = ?`, worldID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
