package achievements

import (
	"errors"
	"testing"
)

func TestTransfer_ExportImportRoundTrip(t *testing.T) {
	src := newTestStore(t)
	src.Create(firstBlood())
	src.Create(def("a2", "Two", "x", "y"))
	src.addAward("a1", "Actor.123")
	src.addAward("a1", "Actor.456")

	blob, err := src.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	list, err := ParseImport(blob)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dst := newTestStore(t)
	dst.Create(def("old", "Old"))
	if err := dst.Import(list); err != nil {
		t.Fatalf("import: %v", err)
	}
	if dst.Exists("old") {
		t.Fatalf("import did not replace existing achievements")
	}
	want, got := src.All(), dst.All()
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Title != want[i].Title || len(got[i].Tags) != len(want[i].Tags) {
			t.Fatalf("record %d: got %+v want %+v", i, got[i], want[i])
		}
		if len(got[i].CompletedActors) != len(want[i].CompletedActors) {
			t.Fatalf("record %d completion: got %v want %v", i, got[i].CompletedActors, want[i].CompletedActors)
		}
	}

	again, _ := dst.Export()
	if string(again) != string(blob) {
		t.Fatalf("re-export differs:\n%s\n---\n%s", again, blob)
	}
}

func TestTransfer_ParseImportLenient(t *testing.T) {
	blob := []byte(`[
	  // a comment
	  {"id": "a1", "title": "T", "description": "D", "completedActors": ["Actor.1"],},
	]`)
	list, err := ParseImport(blob)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(list) != 1 || list[0].CompletedActors[0] != "Actor.1" {
		t.Fatalf("list=%+v", list)
	}
}

func TestTransfer_ParseImportRejects(t *testing.T) {
	cases := map[string]string{
		"not json":       `{{`,
		"object":         `{"id":"a1"}`,
		"empty":          `[]`,
		"missing title":  `[{"id":"a1","description":"D"}]`,
		"spaced id":      `[{"id":"a 1","title":"T","description":"D"}]`,
		"duplicate ids":  `[{"id":"a1","title":"T","description":"D"},{"id":"a1","title":"T2","description":"D2"}]`,
		"bad tags":       `[{"id":"a1","title":"T","description":"D","tags":"x"}]`,
		"empty required": `[{"id":"a1","title":"","description":"D"}]`,
	}
	for name, in := range cases {
		if _, err := ParseImport([]byte(in)); !errors.Is(err, ErrFormat) {
			t.Fatalf("%s: got %v want ErrFormat", name, err)
		}
	}
}

func TestTransfer_ImportPrunesPendingAndLocks(t *testing.T) {
	s := newTestStore(t)
	s.Create(firstBlood())
	s.Create(def("a2", "Two"))
	s.Lock("a1")
	s.Lock("a2")
	s.enqueuePending("Actor.1", "a1")
	s.enqueuePending("Actor.1", "a2")

	list, err := ParseImport([]byte(`[{"id":"a2","title":"Two","description":"D"}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := s.Import(list); err != nil {
		t.Fatalf("import: %v", err)
	}
	if ids := s.LockedIDs(); len(ids) != 1 || ids[0] != "a2" {
		t.Fatalf("locked=%v", ids)
	}
	if ids := s.PendingFor("Actor.1"); len(ids) != 1 || ids[0] != "a2" {
		t.Fatalf("pending=%v", ids)
	}
}
