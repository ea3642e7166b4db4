package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"achievements.party/internal/protocol"
	"achievements.party/internal/settings"
)

// Prefs are the client-scoped settings, kept on the player's machine.
type Prefs struct {
	PlaySelfSounds  bool    `yaml:"play_self_sounds"`
	SelfSoundVolume float64 `yaml:"self_sound_volume"`
}

// Cue is a sound the client should play.
type Cue struct {
	Path   string
	Volume float64
}

var clientRegistry = func() *settings.Registry {
	r := settings.NewRegistry()
	if err := settings.RegisterDefaults(r); err != nil {
		panic(err)
	}
	return r
}()

func DefaultPrefs() Prefs {
	p := Prefs{}
	if s, ok := clientRegistry.Lookup(settings.KeyPlaySelfSounds); ok {
		p.PlaySelfSounds, _ = s.Default.(bool)
	}
	if s, ok := clientRegistry.Lookup(settings.KeySelfSoundVolume); ok {
		p.SelfSoundVolume, _ = s.Default.(float64)
	}
	return p
}

// LoadPrefs reads path, falling back to defaults when it does not exist.
func LoadPrefs(path string) (Prefs, error) {
	p := DefaultPrefs()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := p.Normalize(); err != nil {
		return p, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

func SavePrefs(path string, p Prefs) error {
	if err := p.Normalize(); err != nil {
		return err
	}
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Normalize clamps the volume into range and snaps it to the registered step.
func (p *Prefs) Normalize() error {
	raw, _ := json.Marshal(p.SelfSoundVolume)
	norm, err := clientRegistry.Normalize(settings.KeySelfSoundVolume, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(norm, &p.SelfSoundVolume)
}

// SoundFor decides whether a NOTIFY should play locally. Only notifications
// about the local character make a sound; the path falls back to
// defaultSound.
func (p Prefs) SoundFor(n protocol.NotifyMsg, localCharacter, defaultSound string) (Cue, bool) {
	if !p.PlaySelfSounds || localCharacter == "" || n.SubjectID != localCharacter {
		return Cue{}, false
	}
	path := n.Sound
	if path == "" {
		path = defaultSound
	}
	if path == "" {
		return Cue{}, false
	}
	return Cue{Path: path, Volume: p.SelfSoundVolume}, true
}
