package achievements

import (
	"errors"
	"testing"
)

func viewFixture() []Achievement {
	a1 := Achievement{Definition: def("a1", "First Blood", "combat"), CompletedActors: []string{"Actor.1"}}
	a2 := Achievement{Definition: def("a2", "Secret", "lore"), CompletedActors: []string{}}
	a2.ShowTitleCloaked = true
	a3 := Achievement{Definition: def("a3", "Hidden"), CompletedActors: []string{"Actor.2"}}
	a3.Image = ""
	return []Achievement{a1, a2, a3}
}

func basePolicy() ViewPolicy {
	return ViewPolicy{
		PlayersEnabled:    true,
		CloakUnearned:     true,
		CloakedText:       "HIDDEN",
		ShowTagsToPlayers: true,
		DefaultImage:      "default.webp",
	}
}

func TestView_AdminSeesEverything(t *testing.T) {
	p := basePolicy()
	p.HideUnearned = true
	p.PlayersEnabled = false
	got, err := View(viewFixture(), Viewer{Admin: true}, p)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(got) != 3 || got[1].Title != "Secret" || got[1].Description != "Secret desc" {
		t.Fatalf("admin view=%+v", got)
	}
	if got[2].Image != "default.webp" {
		t.Fatalf("default image not applied: %q", got[2].Image)
	}
}

func TestView_HideUnearned(t *testing.T) {
	p := basePolicy()
	p.HideUnearned = true
	got, err := View(viewFixture(), Viewer{SubjectID: "Actor.1"}, p)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("hide view=%+v", got)
	}
	// Hide wins: the one returned is earned, so nothing is cloaked.
	if got[0].Title != "First Blood" {
		t.Fatalf("earned title cloaked: %q", got[0].Title)
	}
}

func TestView_CloakUnearned(t *testing.T) {
	got, err := View(viewFixture(), Viewer{SubjectID: "Actor.1"}, basePolicy())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("cloak view len=%d", len(got))
	}
	if got[0].Title != "First Blood" || got[0].Description != "First Blood desc" {
		t.Fatalf("earned cloaked: %+v", got[0])
	}
	if got[1].Title != "Secret" || got[1].Description != "HIDDEN" || got[1].Image != "c.png" {
		t.Fatalf("showTitleCloaked: %+v", got[1])
	}
	if got[2].Title != "HIDDEN" || got[2].Description != "HIDDEN" {
		t.Fatalf("cloaked: %+v", got[2])
	}
}

func TestView_TagsAndDisabled(t *testing.T) {
	p := basePolicy()
	p.ShowTagsToPlayers = false
	got, _ := View(viewFixture(), Viewer{SubjectID: "Actor.1"}, p)
	for _, a := range got {
		if len(a.Tags) != 0 {
			t.Fatalf("tags leaked: %+v", a)
		}
	}

	p.PlayersEnabled = false
	if _, err := View(viewFixture(), Viewer{SubjectID: "Actor.1"}, p); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled: %v", err)
	}
}

func TestView_DuplicateIDsAreFatal(t *testing.T) {
	list := viewFixture()
	list = append(list, list[0])
	if _, err := View(list, Viewer{Admin: true}, basePolicy()); !errors.Is(err, ErrConsistency) {
		t.Fatalf("got %v want ErrConsistency", err)
	}
}

func TestView_DoesNotMutateInput(t *testing.T) {
	list := viewFixture()
	View(list, Viewer{SubjectID: "Actor.9"}, basePolicy())
	if list[0].Title != "First Blood" || list[2].Image != "" {
		t.Fatalf("input mutated: %+v", list)
	}
}

func TestQuery_Apply(t *testing.T) {
	list := viewFixture()

	got := Query{Text: "BLO"}.Apply(list)
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("text=%+v", got)
	}
	got = Query{Tags: []string{"lore"}}.Apply(list)
	if len(got) != 1 || got[0].ID != "a2" {
		t.Fatalf("tags=%+v", got)
	}
	got = Query{Tags: []string{"lore", "combat"}}.Apply(list)
	if len(got) != 0 {
		t.Fatalf("all-tags match=%+v", got)
	}
	got = Query{Subject: "Actor.1", HideAwarded: true}.Apply(list)
	if len(got) != 2 {
		t.Fatalf("hideAwarded=%+v", got)
	}
	got = Query{Subject: "Actor.1", HideUnawarded: true}.Apply(list)
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("hideUnawarded=%+v", got)
	}
	got = Query{Sort: SortDesc}.Apply(list)
	if got[0].ID != "a2" || got[2].ID != "a1" {
		t.Fatalf("desc=%v,%v,%v", got[0].ID, got[1].ID, got[2].ID)
	}
	got = Query{Sort: SortAsc}.Apply(list)
	if got[0].ID != "a1" || got[2].ID != "a2" {
		t.Fatalf("asc=%v,%v,%v", got[0].ID, got[1].ID, got[2].ID)
	}

	tags := Tags(list)
	if len(tags) != 2 || tags[0] != "combat" || tags[1] != "lore" {
		t.Fatalf("tags=%v", tags)
	}
}
