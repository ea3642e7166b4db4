package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"achievements.party/internal/session"
)

// Reader queries an index written by SQLiteIndex, possibly while the server
// is still appending to it.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type AuditQuery struct {
	WorldID       string
	Action        string
	AchievementID string
	// Limit keeps the newest N rows. Zero means no limit.
	Limit int
}

// Audits returns matching entries oldest first.
func (r *Reader) Audits(ctx context.Context, q AuditQuery) ([]session.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if q.WorldID != "" {
		where = append(where, "world_id = ?")
		args = append(args, q.WorldID)
	}
	if q.Action != "" {
		where = append(where, "action = ?")
		args = append(args, strings.ToUpper(q.Action))
	}
	if q.AchievementID != "" {
		where = append(where, "achievement_id = ?")
		args = append(args, q.AchievementID)
	}
	stmt := "SELECT raw_json FROM audits"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY id DESC"
	if q.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e session.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("audit row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Unlocks returns the award events recorded for one subject, oldest first.
func (r *Reader) Unlocks(ctx context.Context, worldID, subjectID string) ([]session.EventLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT at,name,achievement_id,late FROM events WHERE world_id = ? AND subject_id = ? ORDER BY id`,
		worldID, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.EventLogEntry
	for rows.Next() {
		var (
			at   string
			late int
			e    = session.EventLogEntry{WorldID: worldID, SubjectID: subjectID}
		)
		if err := rows.Scan(&at, &e.Name, &e.AchievementID, &late); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Late = late != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
