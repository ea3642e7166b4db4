package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"achievements.party/internal/achievements"
)

func requireAdmin(c Caller) error {
	if !c.Admin {
		return achievements.ErrForbidden
	}
	return nil
}

// committed bumps the revision, republishes the view and tells clients to
// refresh.
func (s *Session) committed(caller Caller, action, achievementID string, subjects []string, reason string) {
	s.revision++
	s.metrics.Mutations.Add(1)
	s.publish()
	s.broadcastChanged()
	s.audit(caller, action, achievementID, subjects, reason)
}

func (s *Session) Create(ctx context.Context, caller Caller, d achievements.Definition) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	_, err := exec(ctx, s, func() (struct{}, error) {
		if err := s.store.Create(d); err != nil {
			return struct{}{}, err
		}
		s.committed(caller, ActionCreate, d.ID, nil, "")
		return struct{}{}, nil
	})
	return err
}

func (s *Session) Edit(ctx context.Context, caller Caller, d achievements.Definition) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	_, err := exec(ctx, s, func() (struct{}, error) {
		if err := s.store.Edit(d); err != nil {
			return struct{}{}, err
		}
		s.committed(caller, ActionEdit, d.ID, nil, "")
		return struct{}{}, nil
	})
	return err
}

func (s *Session) Delete(ctx context.Context, caller Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	_, err := exec(ctx, s, func() (struct{}, error) {
		if err := s.store.Delete(id); err != nil {
			return struct{}{}, err
		}
		s.committed(caller, ActionDelete, id, nil, "")
		return struct{}{}, nil
	})
	return err
}

func (s *Session) Award(ctx context.Context, caller Caller, id, subjectID string) (achievements.AwardResult, error) {
	if err := requireAdmin(caller); err != nil {
		return achievements.AwardResult{}, err
	}
	return exec(ctx, s, func() (achievements.AwardResult, error) {
		res, err := s.wf.Award(id, subjectID)
		if res.Changed {
			reason := ""
			if res.Pending {
				reason = "pending"
			}
			s.committed(caller, ActionAward, id, []string{subjectID}, reason)
		}
		return res, err
	})
}

// AwardAll awards id to every player character that does not hold it yet
// and returns those subjects.
func (s *Session) AwardAll(ctx context.Context, caller Caller, id string) ([]string, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return exec(ctx, s, func() ([]string, error) {
		if !s.store.Exists(id) {
			return nil, fmt.Errorf("%w: achievement %s", achievements.ErrNotFound, id)
		}
		if s.store.IsLocked(id) {
			return nil, fmt.Errorf("%w: %s", achievements.ErrLocked, id)
		}
		var awarded []string
		var firstErr error
		for _, p := range s.roster.Players() {
			res, err := s.wf.Award(id, p.Character)
			if errors.Is(err, achievements.ErrNotFound) {
				continue
			}
			if err != nil {
				firstErr = err
				break
			}
			if res.Changed {
				awarded = append(awarded, p.Character)
			}
		}
		if len(awarded) > 0 {
			s.committed(caller, ActionAward, id, awarded, "all")
		}
		return awarded, firstErr
	})
}

func (s *Session) Unaward(ctx context.Context, caller Caller, id string, subjects ...string) ([]string, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return exec(ctx, s, func() ([]string, error) {
		removed, err := s.wf.Unaward(id, subjects...)
		if len(removed) > 0 {
			s.committed(caller, ActionUnaward, id, removed, "")
		}
		return removed, err
	})
}

// UnawardAll removes id from every player character.
func (s *Session) UnawardAll(ctx context.Context, caller Caller, id string) ([]string, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return exec(ctx, s, func() ([]string, error) {
		var subjects []string
		for _, p := range s.roster.Players() {
			subjects = append(subjects, p.Character)
		}
		removed, err := s.wf.Unaward(id, subjects...)
		if len(removed) > 0 {
			s.committed(caller, ActionUnaward, id, removed, "all")
		}
		return removed, err
	})
}

// Lock freezes id. It reports whether the lock state changed.
func (s *Session) Lock(ctx context.Context, caller Caller, id string) (bool, error) {
	if err := requireAdmin(caller); err != nil {
		return false, err
	}
	return exec(ctx, s, func() (bool, error) {
		changed, err := s.store.Lock(id)
		if changed {
			s.committed(caller, ActionLock, id, nil, "")
		}
		return changed, err
	})
}

func (s *Session) Unlock(ctx context.Context, caller Caller, id string) (bool, error) {
	if err := requireAdmin(caller); err != nil {
		return false, err
	}
	return exec(ctx, s, func() (bool, error) {
		changed, err := s.store.Unlock(id)
		if changed {
			s.committed(caller, ActionUnlock, id, nil, "")
		}
		return changed, err
	})
}

// ToggleLock flips the lock and returns the new state.
func (s *Session) ToggleLock(ctx context.Context, caller Caller, id string) (bool, error) {
	if err := requireAdmin(caller); err != nil {
		return false, err
	}
	return exec(ctx, s, func() (bool, error) {
		locked, err := s.store.Toggle(id)
		if err != nil {
			return false, err
		}
		action := ActionUnlock
		if locked {
			action = ActionLock
		}
		s.committed(caller, action, id, nil, "toggle")
		return locked, nil
	})
}

func (s *Session) Export(ctx context.Context, caller Caller) ([]byte, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return exec(ctx, s, func() ([]byte, error) { return s.store.Export() })
}

// Import replaces every achievement and award with the contents of data.
// Without confirm it only validates the payload and fails with
// ErrConfirmationRequired. The previous state is archived first when an
// archiver is configured.
func (s *Session) Import(ctx context.Context, caller Caller, data []byte, confirm bool) (int, error) {
	if err := requireAdmin(caller); err != nil {
		return 0, err
	}
	list, err := achievements.ParseImport(data)
	if err != nil {
		return 0, err
	}
	if !confirm {
		return 0, fmt.Errorf("%w: import replaces %d achievements", achievements.ErrConfirmationRequired, len(s.Snapshot().Achievements))
	}
	return exec(ctx, s, func() (int, error) {
		if s.archiver != nil {
			prev, err := s.store.Export()
			if err != nil {
				return 0, err
			}
			path, err := s.archiver.Backup(s.cfg.WorldID, "import", prev)
			if err != nil {
				return 0, fmt.Errorf("backup before import: %w", err)
			}
			s.log.Printf("import world=%s: previous state archived to %s", s.cfg.WorldID, path)
		}
		if err := s.store.Import(list); err != nil {
			return 0, err
		}
		s.committed(caller, ActionImport, "", nil, fmt.Sprintf("%d achievements", len(list)))
		return len(list), nil
	})
}

// SetSetting updates one user-editable world flag.
func (s *Session) SetSetting(ctx context.Context, caller Caller, key string, raw json.RawMessage) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	_, err := exec(ctx, s, func() (struct{}, error) {
		if err := s.world.Set(key, raw); err != nil {
			return struct{}{}, err
		}
		flags, err := s.world.Flags()
		if err != nil {
			return struct{}{}, err
		}
		s.flags = flags
		s.committed(caller, ActionSetConfig, "", nil, key)
		return struct{}{}, nil
	})
	return err
}
