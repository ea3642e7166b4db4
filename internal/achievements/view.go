package achievements

import (
	"fmt"

	"achievements.party/internal/settings"
)

// Viewer identifies who is listing achievements.
type Viewer struct {
	Admin     bool
	SubjectID string
}

// ViewPolicy is the subset of world flags that shape what a player sees.
type ViewPolicy struct {
	PlayersEnabled    bool
	HideUnearned      bool
	CloakUnearned     bool
	CloakedText       string
	ShowTagsToPlayers bool
	DefaultImage      string
}

func PolicyFromFlags(f settings.Flags) ViewPolicy {
	return ViewPolicy{
		PlayersEnabled:    f.EnablePlayerAchievements,
		HideUnearned:      f.HideUnearned,
		CloakUnearned:     f.CloakUnearned,
		CloakedText:       f.CloakedText,
		ShowTagsToPlayers: f.ShowTagsToPlayers,
		DefaultImage:      f.DefaultImage,
	}
}

// View applies the world's visibility rules to a hydrated list. Admins see
// everything. Players get at most one of hide-unearned and cloak-unearned;
// hide wins when both are set.
func View(all []Achievement, v Viewer, p ViewPolicy) ([]Achievement, error) {
	seen := make(map[string]struct{}, len(all))
	for _, a := range all {
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrConsistency, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	if !v.Admin && !p.PlayersEnabled {
		return nil, ErrDisabled
	}

	out := make([]Achievement, 0, len(all))
	for _, a := range all {
		a.Definition = a.Definition.clone()
		a.CompletedActors = append([]string{}, a.CompletedActors...)
		if a.Image == "" {
			a.Image = p.DefaultImage
		}
		if a.CloakedImage == "" {
			a.CloakedImage = p.DefaultImage
		}
		if v.Admin {
			out = append(out, a)
			continue
		}
		earned := a.CompletedBy(v.SubjectID)
		switch {
		case p.HideUnearned && !earned:
			continue
		case !p.HideUnearned && p.CloakUnearned && !earned:
			a.Description = p.CloakedText
			if !a.ShowTitleCloaked {
				a.Title = p.CloakedText
			}
			a.Image = a.CloakedImage
		}
		if !p.ShowTagsToPlayers {
			a.Tags = nil
		}
		out = append(out, a)
	}
	return out, nil
}
