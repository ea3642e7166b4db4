package achievements

import (
	"slices"

	"achievements.party/internal/settings"
)

// Pending returns a copy of the pending award queue keyed by subject.
func (s *Store) Pending() map[string][]string { return cloneSets(s.pending) }

func (s *Store) PendingFor(subjectID string) []string {
	return append([]string{}, s.pending[subjectID]...)
}

func (s *Store) enqueuePending(subjectID, id string) error {
	if contains(s.pending[subjectID], id) {
		return nil
	}
	pending := cloneSets(s.pending)
	pending[subjectID] = append(pending[subjectID], id)
	if err := s.kv.Save(settings.KeyPending, pending); err != nil {
		return err
	}
	s.pending = pending
	return nil
}

// dropPending removes id from the queues of the given subjects.
func (s *Store) dropPending(id string, subjects []string) error {
	pending := cloneSets(s.pending)
	changed := false
	for _, subj := range subjects {
		ids, ok := pending[subj]
		if !ok || !contains(ids, id) {
			continue
		}
		changed = true
		rest := without(ids, func(x string) bool { return x == id })
		if len(rest) == 0 {
			delete(pending, subj)
		} else {
			pending[subj] = rest
		}
	}
	if !changed {
		return nil
	}
	if err := s.kv.Save(settings.KeyPending, pending); err != nil {
		return err
	}
	s.pending = pending
	return nil
}

// setPending replaces subjectID's queue. An empty ids removes it.
func (s *Store) setPending(subjectID string, ids []string) error {
	if slices.Equal(s.pending[subjectID], ids) {
		return nil
	}
	pending := cloneSets(s.pending)
	if len(ids) == 0 {
		delete(pending, subjectID)
	} else {
		pending[subjectID] = append([]string{}, ids...)
	}
	if err := s.kv.Save(settings.KeyPending, pending); err != nil {
		return err
	}
	s.pending = pending
	return nil
}
