package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"achievements.party/internal/events"
	"achievements.party/internal/session"
)

func TestSQLiteIndex_AuditsAndUnlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, action := range []string{session.ActionCreate, session.ActionAward, session.ActionAward, session.ActionUnaward} {
		_ = idx.WriteAudit(session.AuditEntry{
			At:            at.Add(time.Duration(i) * time.Second),
			WorldID:       "w1",
			Actor:         "gm",
			Action:        action,
			AchievementID: "a1",
			Subjects:      []string{"Actor.123"},
			Revision:      uint64(i + 1),
		})
	}
	_ = idx.WriteAudit(session.AuditEntry{At: at, WorldID: "w2", Actor: "gm", Action: session.ActionAward, AchievementID: "a1", Revision: 1})
	_ = idx.WriteEvent(session.EventLogEntry{At: at, WorldID: "w1", Name: events.NameAwarded, AchievementID: "a1", SubjectID: "Actor.123"})
	_ = idx.WriteEvent(session.EventLogEntry{At: at, WorldID: "w1", Name: events.NameAwarded, AchievementID: "a2", SubjectID: "Actor.123", Late: true})
	_ = idx.WriteEvent(session.EventLogEntry{At: at, WorldID: "w1", Name: events.NameAwarded, AchievementID: "a1", SubjectID: "Actor.456"})

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Writes after close are ignored.
	if err := idx.WriteAudit(session.AuditEntry{WorldID: "w1"}); err != nil {
		t.Fatalf("write after close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	all, err := r.Audits(ctx, AuditQuery{WorldID: "w1"})
	if err != nil || len(all) != 4 {
		t.Fatalf("audits=%+v err=%v", all, err)
	}
	if all[0].Action != session.ActionCreate || all[3].Revision != 4 {
		t.Fatalf("order: first=%+v last=%+v", all[0], all[3])
	}

	awards, err := r.Audits(ctx, AuditQuery{WorldID: "w1", Action: "award", Limit: 1})
	if err != nil || len(awards) != 1 || awards[0].Revision != 3 {
		t.Fatalf("newest award=%+v err=%v", awards, err)
	}
	if len(awards[0].Subjects) != 1 || awards[0].Subjects[0] != "Actor.123" {
		t.Fatalf("subjects=%v", awards[0].Subjects)
	}

	unlocks, err := r.Unlocks(ctx, "w1", "Actor.123")
	if err != nil || len(unlocks) != 2 {
		t.Fatalf("unlocks=%+v err=%v", unlocks, err)
	}
	if unlocks[0].AchievementID != "a1" || !unlocks[1].Late || !unlocks[0].At.Equal(at) {
		t.Fatalf("unlocks=%+v", unlocks)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAudit}

	_ = s.WriteAudit(session.AuditEntry{Revision: 2})
	_ = s.WriteEvent(session.EventLogEntry{SubjectID: "Actor.1"})

	st := s.Stats()
	if st.DropAuditTotal != 1 || st.DropEventTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestOpenReader_Missing(t *testing.T) {
	if _, err := OpenReader(filepath.Join(t.TempDir(), "nope.sqlite")); err == nil {
		t.Fatalf("expected error for missing index")
	}
}
