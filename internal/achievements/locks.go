package achievements

import (
	"fmt"

	"achievements.party/internal/settings"
)

// Lock freezes id against award and unaward. Locking a locked id is a no-op.
func (s *Store) Lock(id string) (changed bool, err error) {
	if !s.Exists(id) {
		return false, fmt.Errorf("%w: achievement %s", ErrNotFound, id)
	}
	if contains(s.locked, id) {
		return false, nil
	}
	next := append(append([]string(nil), s.locked...), id)
	if err := s.kv.Save(settings.KeyLocked, next); err != nil {
		return false, err
	}
	s.locked = next
	return true, nil
}

// Unlock is the inverse of Lock. Unlocking an unlocked id is a no-op.
func (s *Store) Unlock(id string) (changed bool, err error) {
	if !s.Exists(id) {
		return false, fmt.Errorf("%w: achievement %s", ErrNotFound, id)
	}
	if !contains(s.locked, id) {
		return false, nil
	}
	next := without(s.locked, func(x string) bool { return x == id })
	if err := s.kv.Save(settings.KeyLocked, next); err != nil {
		return false, err
	}
	s.locked = next
	return true, nil
}

// Toggle flips the lock and reports the new state.
func (s *Store) Toggle(id string) (locked bool, err error) {
	if s.IsLocked(id) {
		_, err = s.Unlock(id)
		return false, err
	}
	_, err = s.Lock(id)
	return err == nil, err
}

func (s *Store) IsLocked(id string) bool { return contains(s.locked, id) }

func (s *Store) LockedIDs() []string { return append([]string{}, s.locked...) }
