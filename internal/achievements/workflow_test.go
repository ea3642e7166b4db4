package achievements

import (
	"errors"
	"testing"

	"achievements.party/internal/events"
)

type fakeDir struct {
	subjects map[string]bool // subject -> controller online
}

func (d *fakeDir) SubjectExists(id string) bool {
	_, ok := d.subjects[id]
	return ok
}

func (d *fakeDir) ControllerOnline(id string) bool { return d.subjects[id] }

type notice struct {
	id, subject string
	late        bool
	pending     bool
}

type fakeNotifier struct {
	got []notice
	// accept is how many Unlocked notices are taken before refusing. A
	// negative value accepts everything.
	accept int
}

func (n *fakeNotifier) Unlocked(a Achievement, subjectID string, late bool) bool {
	if n.accept == 0 {
		return false
	}
	n.accept--
	n.got = append(n.got, notice{id: a.ID, subject: subjectID, late: late})
	return true
}

func (n *fakeNotifier) PendingAward(a Achievement, subjectID string) {
	n.got = append(n.got, notice{id: a.ID, subject: subjectID, pending: true})
}

type workflowFixture struct {
	wf        *Workflow
	dir       *fakeDir
	notes     *fakeNotifier
	awarded   []events.AchievementAwarded
	unawarded []events.AchievementUnawarded
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	s := newTestStore(t)
	if err := s.Create(firstBlood()); err != nil {
		t.Fatalf("create: %v", err)
	}
	f := &workflowFixture{
		dir:   &fakeDir{subjects: map[string]bool{"Actor.123": true, "Actor.456": false}},
		notes: &fakeNotifier{accept: -1},
	}
	bus := events.NewBus()
	bus.Awarded.Subscribe(func(e events.AchievementAwarded) { f.awarded = append(f.awarded, e) })
	bus.Unawarded.Subscribe(func(e events.AchievementUnawarded) { f.unawarded = append(f.unawarded, e) })
	f.wf = NewWorkflow(s, f.dir, f.notes, bus)
	return f
}

func TestWorkflow_AwardUnawardRoundTrip(t *testing.T) {
	f := newWorkflowFixture(t)
	s := f.wf.Store()
	before := s.Awards()

	res, err := f.wf.Award("a1", "Actor.123")
	if err != nil || !res.Changed || res.Pending {
		t.Fatalf("award: res=%+v err=%v", res, err)
	}
	if !s.HasAchievement("Actor.123", "a1") {
		t.Fatalf("doesCharacterHaveAchievement=false")
	}
	if got := s.ByCharacter("Actor.123"); len(got) != 1 || got[0] != "a1" {
		t.Fatalf("byCharacter=%v", got)
	}
	if len(f.notes.got) != 1 || f.notes.got[0].late || f.notes.got[0].pending {
		t.Fatalf("notices=%+v", f.notes.got)
	}
	if len(f.awarded) != 1 || f.awarded[0].SubjectID != "Actor.123" {
		t.Fatalf("awarded events=%+v", f.awarded)
	}

	// Re-award is an idempotent success with no side effects.
	res, err = f.wf.Award("a1", "Actor.123")
	if err != nil || res.Changed {
		t.Fatalf("re-award: res=%+v err=%v", res, err)
	}
	if len(f.notes.got) != 1 || len(f.awarded) != 1 {
		t.Fatalf("re-award produced side effects")
	}

	removed, err := f.wf.Unaward("a1", "Actor.123")
	if err != nil || len(removed) != 1 {
		t.Fatalf("unaward: removed=%v err=%v", removed, err)
	}
	a, _ := s.Get("a1")
	if len(a.CompletedActors) != 0 {
		t.Fatalf("completedActors=%v", a.CompletedActors)
	}
	if len(s.Awards()) != len(before) {
		t.Fatalf("award record not restored: %v", s.Awards())
	}
	if len(f.unawarded) != 1 || f.unawarded[0].AchievementID != "a1" {
		t.Fatalf("unawarded events=%+v", f.unawarded)
	}
	if len(f.notes.got) != 1 {
		t.Fatalf("unaward should not notify: %+v", f.notes.got)
	}
}

func TestWorkflow_AwardErrors(t *testing.T) {
	f := newWorkflowFixture(t)

	if _, err := f.wf.Award("zz", "Actor.123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown achievement: %v", err)
	}
	if _, err := f.wf.Award("a1", "Actor.999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown subject: %v", err)
	}

	f.wf.Store().Lock("a1")
	before := f.wf.Store().Awards()
	if _, err := f.wf.Award("a1", "Actor.123"); !errors.Is(err, ErrLocked) {
		t.Fatalf("locked award: %v", err)
	}
	if len(f.wf.Store().Awards()) != len(before) {
		t.Fatalf("award record changed while locked")
	}
	if _, err := f.wf.Unaward("a1", "Actor.123"); !errors.Is(err, ErrLocked) {
		t.Fatalf("locked unaward: %v", err)
	}
}

func TestWorkflow_OfflineAwardIsQueuedAndReplayed(t *testing.T) {
	f := newWorkflowFixture(t)
	s := f.wf.Store()

	res, err := f.wf.Award("a1", "Actor.456")
	if err != nil || !res.Changed || !res.Pending {
		t.Fatalf("award offline: res=%+v err=%v", res, err)
	}
	if !s.HasAchievement("Actor.456", "a1") {
		t.Fatalf("offline award not recorded")
	}
	if got := s.PendingFor("Actor.456"); len(got) != 1 || got[0] != "a1" {
		t.Fatalf("pending=%v", got)
	}
	if len(f.awarded) != 0 {
		t.Fatalf("offline award published early")
	}
	if len(f.notes.got) != 1 || !f.notes.got[0].pending {
		t.Fatalf("notices=%+v", f.notes.got)
	}

	f.dir.subjects["Actor.456"] = true
	delivered, remaining, err := f.wf.ReplayPending("Actor.456")
	if err != nil || len(delivered) != 1 || len(remaining) != 0 {
		t.Fatalf("replay: delivered=%v remaining=%v err=%v", delivered, remaining, err)
	}
	if len(f.awarded) != 1 || !f.awarded[0].Late {
		t.Fatalf("replay events=%+v", f.awarded)
	}
	last := f.notes.got[len(f.notes.got)-1]
	if !last.late || last.subject != "Actor.456" {
		t.Fatalf("replay notice=%+v", last)
	}
	if len(s.PendingFor("Actor.456")) != 0 {
		t.Fatalf("pending not cleared")
	}
	if again, _, _ := f.wf.ReplayPending("Actor.456"); len(again) != 0 {
		t.Fatalf("second replay delivered %v", again)
	}
}

func TestWorkflow_ReplayDropsDeletedAndUnawarded(t *testing.T) {
	f := newWorkflowFixture(t)
	s := f.wf.Store()
	s.Create(def("a2", "Two"))
	s.Create(def("a3", "Three"))

	for _, id := range []string{"a1", "a2", "a3"} {
		if _, err := f.wf.Award(id, "Actor.456"); err != nil {
			t.Fatalf("award %s: %v", id, err)
		}
	}
	if err := s.Delete("a2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.wf.Unaward("a3", "Actor.456"); err != nil {
		t.Fatalf("unaward: %v", err)
	}
	if got := s.PendingFor("Actor.456"); len(got) != 1 || got[0] != "a1" {
		t.Fatalf("pending after purge=%v", got)
	}

	f.dir.subjects["Actor.456"] = true
	delivered, _, err := f.wf.ReplayPending("Actor.456")
	if err != nil || len(delivered) != 1 || delivered[0] != "a1" {
		t.Fatalf("delivered=%v err=%v", delivered, err)
	}
}

func TestWorkflow_ReplayKeepsRefusedNotices(t *testing.T) {
	f := newWorkflowFixture(t)
	s := f.wf.Store()
	s.Create(def("a2", "Two"))
	s.Create(def("a3", "Three"))
	for _, id := range []string{"a1", "a2", "a3"} {
		if _, err := f.wf.Award(id, "Actor.456"); err != nil {
			t.Fatalf("award %s: %v", id, err)
		}
	}
	f.dir.subjects["Actor.456"] = true

	// The controller's connection only has room for one notice.
	f.notes.accept = 1
	delivered, remaining, err := f.wf.ReplayPending("Actor.456")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(delivered) != 1 || delivered[0] != "a1" {
		t.Fatalf("delivered=%v", delivered)
	}
	if len(remaining) != 2 || remaining[0] != "a2" || remaining[1] != "a3" {
		t.Fatalf("remaining=%v", remaining)
	}
	if got := s.PendingFor("Actor.456"); len(got) != 2 || got[0] != "a2" {
		t.Fatalf("queue after partial replay=%v", got)
	}
	if len(f.awarded) != 1 || f.awarded[0].AchievementID != "a1" {
		t.Fatalf("events=%+v", f.awarded)
	}

	// Nothing accepted: the queue is untouched.
	f.notes.accept = 0
	if delivered, remaining, _ := f.wf.ReplayPending("Actor.456"); len(delivered) != 0 || len(remaining) != 2 {
		t.Fatalf("refused replay: delivered=%v remaining=%v", delivered, remaining)
	}

	f.notes.accept = -1
	delivered, remaining, err = f.wf.ReplayPending("Actor.456")
	if err != nil || len(delivered) != 2 || len(remaining) != 0 {
		t.Fatalf("final replay: delivered=%v remaining=%v err=%v", delivered, remaining, err)
	}
	if len(s.PendingFor("Actor.456")) != 0 {
		t.Fatalf("queue not drained")
	}
}

func TestWorkflow_UnawardMany(t *testing.T) {
	f := newWorkflowFixture(t)
	f.wf.Award("a1", "Actor.123")
	f.wf.Award("a1", "Actor.456")

	removed, err := f.wf.Unaward("a1", "Actor.123", "Actor.456", "Actor.789")
	if err != nil {
		t.Fatalf("unaward: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed=%v", removed)
	}
	if len(f.unawarded) != 2 {
		t.Fatalf("unawarded events=%d want 2", len(f.unawarded))
	}
	if len(f.wf.Store().PendingFor("Actor.456")) != 0 {
		t.Fatalf("pending not purged on unaward")
	}
}
