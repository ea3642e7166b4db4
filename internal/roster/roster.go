package roster

import (
	"sort"
	"strings"
)

const (
	KindCharacter = "character"
	KindNPC       = "npc"
)

// User is a participant who can connect to a world.
type User struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Admin     bool   `json:"admin,omitempty" yaml:"admin"`
	Character string `json:"character,omitempty" yaml:"character"`
}

// Subject is an entity that can hold achievements.
type Subject struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind,omitempty" yaml:"kind"`
}

type Roster struct {
	Users    []User    `json:"users" yaml:"users"`
	Subjects []Subject `json:"subjects" yaml:"subjects"`
}

func (r *Roster) User(id string) (User, bool) {
	for _, u := range r.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

func (r *Roster) Subject(id string) (Subject, bool) {
	for _, s := range r.Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// Awardable reports whether id names a known non-NPC subject.
func (r *Roster) Awardable(id string) bool {
	s, ok := r.Subject(id)
	return ok && s.Kind != KindNPC
}

// Controller returns the user whose character is subjectID. Non-admin users
// win over admins when both claim the same character.
func (r *Roster) Controller(subjectID string) (User, bool) {
	if subjectID == "" {
		return User{}, false
	}
	var fallback *User
	for i := range r.Users {
		u := r.Users[i]
		if u.Character != subjectID {
			continue
		}
		if !u.Admin {
			return u, true
		}
		if fallback == nil {
			fallback = &r.Users[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return User{}, false
}

// Players returns non-admin users that control a character, sorted by id.
func (r *Roster) Players() []User {
	var out []User
	for _, u := range r.Users {
		if u.Admin || u.Character == "" {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpsertUser inserts or replaces u. It reports whether anything changed.
func (r *Roster) UpsertUser(u User) bool {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return false
	}
	for i, cur := range r.Users {
		if cur.ID != u.ID {
			continue
		}
		if cur == u {
			return false
		}
		r.Users[i] = u
		return true
	}
	r.Users = append(r.Users, u)
	return true
}

// UpsertSubject inserts or replaces s. Kind defaults to character.
func (r *Roster) UpsertSubject(s Subject) bool {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return false
	}
	if s.Kind == "" {
		s.Kind = KindCharacter
	}
	for i, cur := range r.Subjects {
		if cur.ID != s.ID {
			continue
		}
		if cur == s {
			return false
		}
		r.Subjects[i] = s
		return true
	}
	r.Subjects = append(r.Subjects, s)
	return true
}

// Merge upserts every entry of other into r.
func (r *Roster) Merge(other Roster) bool {
	changed := false
	for _, s := range other.Subjects {
		if r.UpsertSubject(s) {
			changed = true
		}
	}
	for _, u := range other.Users {
		if r.UpsertUser(u) {
			changed = true
		}
	}
	return changed
}

func (r Roster) Clone() Roster {
	out := Roster{
		Users:    make([]User, len(r.Users)),
		Subjects: make([]Subject, len(r.Subjects)),
	}
	copy(out.Users, r.Users)
	copy(out.Subjects, r.Subjects)
	return out
}
