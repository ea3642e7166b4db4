package settings

import (
	"encoding/json"
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := RegisterDefaults(r); err != nil {
		t.Fatalf("register defaults: %v", err)
	}
	return r
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register(Setting{Key: KeyHideUnearned}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestRegistry_NormalizeVolumeSnapsAndClamps(t *testing.T) {
	r := newTestRegistry(t)
	cases := map[string]string{
		`0.44`: `0.4`,
		`0.46`: `0.5`,
		`1.7`:  `1`,
		`-2`:   `0`,
		`0.3`:  `0.3`,
	}
	for in, want := range cases {
		got, err := r.Normalize(KeySelfSoundVolume, json.RawMessage(in))
		if err != nil {
			t.Fatalf("normalize %s: %v", in, err)
		}
		if string(got) != want {
			t.Fatalf("normalize %s = %s want %s", in, got, want)
		}
	}
	if _, err := r.Normalize(KeySelfSoundVolume, json.RawMessage(`"loud"`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for string volume, got %v", err)
	}
}

func TestRegistry_NormalizeKinds(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Normalize(KeyHideUnearned, json.RawMessage(`"yes"`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bool key, got %v", err)
	}
	if _, err := r.Normalize(KeyCloakedText, json.RawMessage(`12`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for string key, got %v", err)
	}
	if _, err := r.Normalize("nope", json.RawMessage(`true`)); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestRegistry_KeysByScope(t *testing.T) {
	r := newTestRegistry(t)
	client := r.Keys(ScopeClient, true)
	if len(client) != 2 || client[0] != KeyPlaySelfSounds || client[1] != KeySelfSoundVolume {
		t.Fatalf("client keys=%v", client)
	}
	for _, k := range r.Keys(ScopeWorld, true) {
		if k == KeyAchievements || k == KeyAwards {
			t.Fatalf("data key %q listed as config", k)
		}
	}
}

func TestRegistry_SetDefault(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.SetDefault(KeyCloakedText, "???"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	s, _ := r.Lookup(KeyCloakedText)
	if s.Default != "???" {
		t.Fatalf("default=%v", s.Default)
	}
	if err := r.SetDefault(KeyHideUnearned, "nope"); err == nil {
		t.Fatalf("expected invalid default to be rejected")
	}
}
