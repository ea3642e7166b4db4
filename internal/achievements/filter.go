package achievements

import (
	"sort"
	"strings"
)

type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Query narrows a listing the way the achievement browser does: title
// search, tag match, awarded state relative to one subject, title order.
type Query struct {
	Text          string    `json:"text,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	HideAwarded   bool      `json:"hide_awarded,omitempty"`
	HideUnawarded bool      `json:"hide_unawarded,omitempty"`
	Sort          SortOrder `json:"sort,omitempty"`
}

func (q Query) Apply(list []Achievement) []Achievement {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]Achievement, 0, len(list))
	for _, a := range list {
		if text != "" && !strings.Contains(strings.ToLower(a.Title), text) {
			continue
		}
		if !hasAllTags(a.Tags, q.Tags) {
			continue
		}
		if q.Subject != "" {
			earned := a.CompletedBy(q.Subject)
			if (earned && q.HideAwarded) || (!earned && q.HideUnawarded) {
				continue
			}
		}
		out = append(out, a)
	}
	switch q.Sort {
	case SortAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	case SortDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) > strings.ToLower(out[j].Title)
		})
	}
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		ok := false
		for _, h := range have {
			if strings.EqualFold(h, w) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Tags returns the distinct tags used across list, sorted.
func Tags(list []Achievement) []string {
	set := map[string]struct{}{}
	for _, a := range list {
		for _, t := range a.Tags {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
