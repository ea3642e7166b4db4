package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"achievements.party/internal/achievements"
	"achievements.party/internal/roster"
	"achievements.party/internal/settings"
)

// View is an immutable copy of the session state. Callers must not modify
// it.
type View struct {
	WorldID      string
	Revision     uint64
	Achievements []achievements.Achievement
	Locked       []string
	Pending      map[string][]string
	Flags        settings.Flags
	Settings     map[string]json.RawMessage
	Roster       roster.Roster
	Online       []string // user ids with at least one connection
	Clients      int
	UpdatedAt    time.Time
}

func (s *Session) publish() {
	vals, err := s.world.Values()
	if err != nil {
		s.log.Printf("load settings world=%s: %v", s.cfg.WorldID, err)
	}
	online := map[string]struct{}{}
	for _, c := range s.clients {
		online[c.userID] = struct{}{}
	}
	v := &View{
		WorldID:      s.cfg.WorldID,
		Revision:     s.revision,
		Achievements: s.store.All(),
		Locked:       s.store.LockedIDs(),
		Pending:      s.store.Pending(),
		Flags:        s.flags,
		Settings:     vals,
		Roster:       s.roster.Clone(),
		Online:       settings.SortedKeys(online),
		Clients:      len(s.clients),
		UpdatedAt:    s.now().UTC(),
	}
	s.view.Store(v)
}

// Snapshot returns the latest published view.
func (s *Session) Snapshot() *View { return s.view.Load() }

func (s *Session) policyFor(v *View) achievements.ViewPolicy {
	return achievements.PolicyFromFlags(v.Flags)
}

// List returns the achievements caller may see, narrowed by q.
func (s *Session) List(caller Caller, q achievements.Query) ([]achievements.Achievement, error) {
	s.metrics.Requests.Add(1)
	v := s.Snapshot()
	list, err := achievements.View(v.Achievements, achievements.Viewer{Admin: caller.Admin, SubjectID: caller.CharacterID}, s.policyFor(v))
	if err != nil {
		if errors.Is(err, achievements.ErrConsistency) {
			s.log.Printf("list world=%s: %v", s.cfg.WorldID, err)
		}
		return nil, err
	}
	if q.Subject == "" && (q.HideAwarded || q.HideUnawarded) {
		q.Subject = caller.CharacterID
	}
	return q.Apply(list), nil
}

// Get returns one achievement as caller would see it in List.
func (s *Session) Get(caller Caller, id string) (achievements.Achievement, error) {
	list, err := s.List(caller, achievements.Query{})
	if err != nil {
		return achievements.Achievement{}, err
	}
	for _, a := range list {
		if a.ID == id {
			return a, nil
		}
	}
	return achievements.Achievement{}, fmt.Errorf("%w: achievement %s", achievements.ErrNotFound, id)
}

func (s *Session) Exists(id string) bool {
	for _, a := range s.Snapshot().Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) HasAchievement(subjectID, id string) bool {
	for _, a := range s.Snapshot().Achievements {
		if a.ID == id {
			return a.CompletedBy(subjectID)
		}
	}
	return false
}

// ByCharacter returns the sorted ids subjectID has completed.
func (s *Session) ByCharacter(subjectID string) []string {
	out := []string{}
	for _, a := range s.Snapshot().Achievements {
		if a.CompletedBy(subjectID) {
			out = append(out, a.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Pending returns the queued awards. Admin only.
func (s *Session) Pending(caller Caller) (map[string][]string, error) {
	if !caller.Admin {
		return nil, achievements.ErrForbidden
	}
	return s.Snapshot().Pending, nil
}

// Settings returns the effective world flags.
func (s *Session) Settings() map[string]json.RawMessage { return s.Snapshot().Settings }

// Roster returns users and subjects. Players only see the subjects, not
// which user is an admin.
func (s *Session) Roster(caller Caller) roster.Roster {
	r := s.Snapshot().Roster
	if caller.Admin {
		return r
	}
	out := roster.Roster{Subjects: r.Subjects, Users: make([]roster.User, 0, len(r.Users))}
	for _, u := range r.Users {
		out.Users = append(out.Users, roster.User{ID: u.ID, Name: u.Name, Character: u.Character})
	}
	return out
}
