package achievements

import (
	"fmt"
	"time"

	"achievements.party/internal/events"
)

// Directory answers roster questions for the workflow.
type Directory interface {
	// SubjectExists reports whether the subject is known and awardable.
	SubjectExists(subjectID string) bool
	// ControllerOnline reports whether the user controlling the subject has a
	// live connection.
	ControllerOnline(subjectID string) bool
}

// Notifier delivers award notices to connected clients. Unlocked reports
// whether a connection of the subject's controller accepted the notice.
type Notifier interface {
	Unlocked(a Achievement, subjectID string, late bool) bool
	PendingAward(a Achievement, subjectID string)
}

type Workflow struct {
	store  *Store
	dir    Directory
	notify Notifier
	bus    *events.Bus
	now    func() time.Time
}

func NewWorkflow(store *Store, dir Directory, n Notifier, bus *events.Bus) *Workflow {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Workflow{store: store, dir: dir, notify: n, bus: bus, now: time.Now}
}

func (w *Workflow) Store() *Store { return w.store }

type AwardResult struct {
	// Changed is false when the subject already held the achievement.
	Changed bool `json:"changed"`
	// Pending is set when the controller was offline and delivery was queued.
	Pending bool `json:"pending"`
}

// Award gives achievement id to subjectID. Re-awarding is a successful no-op.
func (w *Workflow) Award(id, subjectID string) (AwardResult, error) {
	if !w.store.Exists(id) {
		return AwardResult{}, fmt.Errorf("%w: achievement %s", ErrNotFound, id)
	}
	if !w.dir.SubjectExists(subjectID) {
		return AwardResult{}, fmt.Errorf("%w: subject %s", ErrNotFound, subjectID)
	}
	if w.store.IsLocked(id) {
		return AwardResult{}, fmt.Errorf("%w: %s", ErrLocked, id)
	}
	added, err := w.store.addAward(id, subjectID)
	if err != nil || !added {
		return AwardResult{}, err
	}
	a, _ := w.store.Get(id)
	if !w.dir.ControllerOnline(subjectID) {
		if err := w.store.enqueuePending(subjectID, id); err != nil {
			return AwardResult{Changed: true}, err
		}
		if w.notify != nil {
			w.notify.PendingAward(a, subjectID)
		}
		return AwardResult{Changed: true, Pending: true}, nil
	}
	if w.notify != nil {
		w.notify.Unlocked(a, subjectID, false)
	}
	w.bus.Awarded.Publish(events.AchievementAwarded{AchievementID: id, SubjectID: subjectID, At: w.now()})
	return AwardResult{Changed: true}, nil
}

// Unaward takes id away from each subject and purges matching pending
// entries. It returns the subjects that actually held the achievement.
func (w *Workflow) Unaward(id string, subjects ...string) ([]string, error) {
	if !w.store.Exists(id) {
		return nil, fmt.Errorf("%w: achievement %s", ErrNotFound, id)
	}
	if w.store.IsLocked(id) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, id)
	}
	if len(subjects) == 0 {
		return nil, nil
	}
	removed, err := w.store.removeAwards(id, subjects)
	if err != nil {
		return nil, err
	}
	if err := w.store.dropPending(id, subjects); err != nil {
		return removed, err
	}
	at := w.now()
	for _, subj := range removed {
		w.bus.Unawarded.Publish(events.AchievementUnawarded{AchievementID: id, SubjectID: subj, At: at})
	}
	return removed, nil
}

// ReplayPending delivers the awards queued for subjectID while its
// controller was away. Once the notifier refuses one, it and every later
// entry stay queued in order for the next attempt. Entries whose achievement
// was deleted or unawarded in the meantime are dropped.
func (w *Workflow) ReplayPending(subjectID string) (delivered, remaining []string, err error) {
	queued := w.store.PendingFor(subjectID)
	if len(queued) == 0 {
		return nil, nil, nil
	}
	blocked := false
	for _, id := range queued {
		a, ok := w.store.Get(id)
		if !ok || !a.CompletedBy(subjectID) {
			continue
		}
		if blocked || (w.notify != nil && !w.notify.Unlocked(a, subjectID, true)) {
			blocked = true
			remaining = append(remaining, id)
			continue
		}
		delivered = append(delivered, id)
	}
	if err := w.store.setPending(subjectID, remaining); err != nil {
		return nil, nil, err
	}
	at := w.now()
	for _, id := range delivered {
		w.bus.Awarded.Publish(events.AchievementAwarded{AchievementID: id, SubjectID: subjectID, Late: true, At: at})
	}
	return delivered, remaining, nil
}
