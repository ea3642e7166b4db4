package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"achievements.party/internal/session"
)

func TestAuditLogger_WritesReadableJSONLZstd(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{session.ActionCreate, session.ActionAward} {
		err := l.WriteAudit(session.AuditEntry{At: at, WorldID: "w1", Actor: "gm", Action: action, AchievementID: "a1", Revision: uint64(i + 1)})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := ReadAudit(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[1].Action != session.ActionAward || got[1].Revision != 2 || !got[0].At.Equal(at) {
		t.Fatalf("entries=%+v", got)
	}
}

func TestSegmented_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := newSegmented[map[string]int](dir, "events")
	hour := time.Date(2026, 10, 16, 9, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return hour }

	if err := w.Append(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	hour = hour.Add(2 * time.Minute)
	if err := w.Append(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "events")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "events-2026-10-16-09.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	var n struct{ N int }
	if err := ReadJSONL(files[1], func(line []byte) error { return json.Unmarshal(line, &n) }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n.N != 2 {
		t.Fatalf("second file n=%d", n.N)
	}
}

func TestEventLogger_LinesReadableBeforeClose(t *testing.T) {
	worldDir := t.TempDir()
	l := NewEventLogger(worldDir)
	defer l.Close()

	e := session.EventLogEntry{At: time.Now().UTC(), WorldID: "w1", Name: "awardAchievement", AchievementID: "a1", SubjectID: "Actor.123", Late: true}
	if err := l.WriteEvent(e); err != nil {
		t.Fatalf("write: %v", err)
	}

	files, err := Files(StreamEvents.Dir(worldDir), string(StreamEvents))
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []session.EventLogEntry
	err = ReadJSONL(files[0], func(line []byte) error {
		var e session.EventLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	})
	if err != nil || len(got) != 1 || got[0].SubjectID != "Actor.123" || !got[0].Late {
		t.Fatalf("entries=%+v err=%v", got, err)
	}
}
