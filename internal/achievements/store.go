package achievements

import (
	"fmt"
	"sort"

	"achievements.party/internal/settings"
)

// KV is the world-scoped settings surface the store persists through.
type KV interface {
	Load(key string, dst any) error
	Save(key string, v any) error
	// SaveAll writes several keys atomically.
	SaveAll(values map[string]any) error
}

// Store owns the achievement state of one world. Every mutation writes the
// affected blob through KV first and only then updates memory, so a failed
// write leaves the store unchanged.
//
// Store is not safe for concurrent use; the session loop owns it.
type Store struct {
	kv KV

	defs    []Definition
	awards  map[string][]string // achievement id -> subject ids
	pending map[string][]string // subject id -> achievement ids
	locked  []string
}

// Open loads all four blobs from kv.
func Open(kv KV) (*Store, error) {
	s := &Store{kv: kv}
	if err := kv.Load(settings.KeyAchievements, &s.defs); err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	if err := kv.Load(settings.KeyAwards, &s.awards); err != nil {
		return nil, fmt.Errorf("load awards: %w", err)
	}
	if err := kv.Load(settings.KeyPending, &s.pending); err != nil {
		return nil, fmt.Errorf("load pending: %w", err)
	}
	if err := kv.Load(settings.KeyLocked, &s.locked); err != nil {
		return nil, fmt.Errorf("load locked: %w", err)
	}
	if s.awards == nil {
		s.awards = map[string][]string{}
	}
	if s.pending == nil {
		s.pending = map[string][]string{}
	}
	for id, subs := range s.awards {
		sorted := append([]string(nil), subs...)
		sort.Strings(sorted)
		s.awards[id] = sorted
	}
	return s, nil
}

func (s *Store) index(id string) int {
	for i, d := range s.defs {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) Create(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if s.index(d.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ID)
	}
	next := make([]Definition, 0, len(s.defs)+1)
	next = append(next, s.defs...)
	next = append(next, d.clone())
	if err := s.kv.Save(settings.KeyAchievements, next); err != nil {
		return err
	}
	s.defs = next
	return nil
}

// Edit replaces the definition with the same id. Completion state is kept.
func (s *Store) Edit(d Definition) error {
	i := s.index(d.ID)
	if i < 0 {
		return fmt.Errorf("%w: achievement %s", ErrNotFound, d.ID)
	}
	if err := d.Validate(); err != nil {
		return err
	}
	next := append([]Definition(nil), s.defs...)
	next[i] = d.clone()
	if err := s.kv.Save(settings.KeyAchievements, next); err != nil {
		return err
	}
	s.defs = next
	return nil
}

// Delete removes the achievement together with its award, pending and lock
// entries.
func (s *Store) Delete(id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: achievement %s", ErrNotFound, id)
	}
	defs := append(append([]Definition(nil), s.defs[:i]...), s.defs[i+1:]...)

	awards := cloneSets(s.awards)
	delete(awards, id)

	pending := map[string][]string{}
	for subj, ids := range s.pending {
		rest := without(ids, func(x string) bool { return x == id })
		if len(rest) > 0 {
			pending[subj] = rest
		}
	}

	locked := without(s.locked, func(x string) bool { return x == id })

	// Definitions go last so a partial failure never leaves awards for an
	// achievement that no longer exists.
	if err := s.kv.Save(settings.KeyAwards, awards); err != nil {
		return err
	}
	s.awards = awards
	if err := s.kv.Save(settings.KeyPending, pending); err != nil {
		return err
	}
	s.pending = pending
	if err := s.kv.Save(settings.KeyLocked, locked); err != nil {
		return err
	}
	s.locked = locked
	if err := s.kv.Save(settings.KeyAchievements, defs); err != nil {
		return err
	}
	s.defs = defs
	return nil
}

func (s *Store) Exists(id string) bool { return s.index(id) >= 0 }

func (s *Store) Get(id string) (Achievement, bool) {
	i := s.index(id)
	if i < 0 {
		return Achievement{}, false
	}
	return s.hydrate(s.defs[i]), true
}

// All returns every achievement in store order, hydrated with its
// completing subjects.
func (s *Store) All() []Achievement {
	out := make([]Achievement, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, s.hydrate(d))
	}
	return out
}

func (s *Store) hydrate(d Definition) Achievement {
	return Achievement{
		Definition:      d.clone(),
		CompletedActors: append([]string{}, s.awards[d.ID]...),
	}
}

func (s *Store) HasAchievement(subjectID, id string) bool {
	return s.Exists(id) && contains(s.awards[id], subjectID)
}

// ByCharacter returns the sorted ids of achievements completed by subjectID.
func (s *Store) ByCharacter(subjectID string) []string {
	out := []string{}
	for _, d := range s.defs {
		if contains(s.awards[d.ID], subjectID) {
			out = append(out, d.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Awards returns a copy of the award record.
func (s *Store) Awards() map[string][]string { return cloneSets(s.awards) }

func (s *Store) addAward(id, subjectID string) (bool, error) {
	next, added := insertSorted(s.awards[id], subjectID)
	if !added {
		return false, nil
	}
	awards := cloneSets(s.awards)
	awards[id] = next
	if err := s.kv.Save(settings.KeyAwards, awards); err != nil {
		return false, err
	}
	s.awards = awards
	return true, nil
}

// removeAwards drops subjects from id's award set and returns the ones that
// were actually present.
func (s *Store) removeAwards(id string, subjects []string) ([]string, error) {
	var removed []string
	rest := without(s.awards[id], func(x string) bool {
		if contains(subjects, x) {
			removed = append(removed, x)
			return true
		}
		return false
	})
	if len(removed) == 0 {
		return nil, nil
	}
	awards := cloneSets(s.awards)
	if len(rest) == 0 {
		delete(awards, id)
	} else {
		awards[id] = rest
	}
	if err := s.kv.Save(settings.KeyAwards, awards); err != nil {
		return nil, err
	}
	s.awards = awards
	return removed, nil
}

// Replace swaps in a complete set of definitions and awards. Pending and
// lock entries for ids that no longer exist are dropped.
func (s *Store) Replace(defs []Definition, awards map[string][]string) error {
	seen := make(map[string]struct{}, len(defs))
	nextDefs := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrFormat, d.ID)
		}
		seen[d.ID] = struct{}{}
		nextDefs = append(nextDefs, d.clone())
	}
	nextAwards := map[string][]string{}
	for id, subs := range awards {
		if _, ok := seen[id]; !ok {
			continue
		}
		var set []string
		for _, subj := range subs {
			set, _ = insertSorted(set, subj)
		}
		if len(set) > 0 {
			nextAwards[id] = set
		}
	}
	pending := map[string][]string{}
	for subj, ids := range s.pending {
		rest := without(ids, func(x string) bool { _, ok := seen[x]; return !ok })
		if len(rest) > 0 {
			pending[subj] = rest
		}
	}
	locked := without(s.locked, func(x string) bool { _, ok := seen[x]; return !ok })

	if err := s.kv.SaveAll(map[string]any{
		settings.KeyAchievements: nextDefs,
		settings.KeyAwards:       nextAwards,
		settings.KeyPending:      pending,
		settings.KeyLocked:       locked,
	}); err != nil {
		return err
	}
	s.defs, s.awards, s.pending, s.locked = nextDefs, nextAwards, pending, locked
	return nil
}

func cloneSets(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
