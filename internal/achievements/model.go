// Package achievements holds the achievement definitions of one world and
// the bookkeeping around them: award records, the pending award queue and
// the locked set.
package achievements

import (
	"fmt"
	"strings"
	"unicode"
)

// Definition is the persisted metadata of one achievement.
type Definition struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Image            string   `json:"image"`
	CloakedImage     string   `json:"cloakedImage"`
	Sound            string   `json:"sound"`
	ShowTitleCloaked bool     `json:"showTitleCloaked"`
	Tags             []string `json:"tags"`
}

// Achievement is a Definition hydrated with the subjects that completed it.
// CompletedActors is never persisted alongside the definition.
type Achievement struct {
	Definition
	CompletedActors []string `json:"completedActors"`
}

func (a Achievement) CompletedBy(subjectID string) bool {
	return contains(a.CompletedActors, subjectID)
}

// Validate checks the fields required to create or edit an achievement.
func (d Definition) Validate() error {
	missing := make([]string, 0, 6)
	for _, f := range []struct {
		name, v string
	}{
		{"id", d.ID},
		{"title", d.Title},
		{"description", d.Description},
		{"image", d.Image},
		{"cloakedImage", d.CloakedImage},
		{"sound", d.Sound},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return validateID(d.ID)
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing id", ErrValidation)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: id %q contains whitespace", ErrValidation, id)
	}
	return nil
}

func (d Definition) clone() Definition {
	d.Tags = append([]string(nil), d.Tags...)
	return d
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// insertSorted adds v to the sorted set xs.
func insertSorted(xs []string, v string) ([]string, bool) {
	i := 0
	for i < len(xs) && xs[i] < v {
		i++
	}
	if i < len(xs) && xs[i] == v {
		return xs, false
	}
	out := make([]string, 0, len(xs)+1)
	out = append(out, xs[:i]...)
	out = append(out, v)
	return append(out, xs[i:]...), true
}

func without(xs []string, drop func(string) bool) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if !drop(x) {
			out = append(out, x)
		}
	}
	return out
}
