package settings

import (
	"encoding/json"
	"fmt"
)

// World is the settings view of one world: typed load/save of data blobs
// plus validated updates of config flags.
type World struct {
	store Store
	id    string
	reg   *Registry
}

func NewWorld(store Store, worldID string, reg *Registry) *World {
	return &World{store: store, id: worldID, reg: reg}
}

func (w *World) ID() string          { return w.id }
func (w *World) Registry() *Registry { return w.reg }

// Load decodes key into dst. Missing keys fall back to the registered
// default; unregistered missing keys leave dst untouched.
func (w *World) Load(key string, dst any) error {
	raw, ok, err := w.store.Get(w.id, key)
	if err != nil {
		return err
	}
	if !ok {
		s, known := w.reg.Lookup(key)
		if !known || s.Default == nil {
			return nil
		}
		raw, err = json.Marshal(s.Default)
		if err != nil {
			return err
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (w *World) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return w.store.Put(w.id, key, raw)
}

// SaveAll encodes every value and writes them in one atomic batch.
func (w *World) SaveAll(values map[string]any) error {
	raws := make(map[string][]byte, len(values))
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		raws[key] = raw
	}
	return w.store.PutMany(w.id, raws)
}

// Set validates and stores a user-editable world flag.
func (w *World) Set(key string, raw json.RawMessage) error {
	s, ok := w.reg.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !s.Config || s.Scope != ScopeWorld {
		return fmt.Errorf("%w: %s", ErrReadOnly, key)
	}
	norm, err := w.reg.Normalize(key, raw)
	if err != nil {
		return err
	}
	return w.store.Put(w.id, key, norm)
}

// Values returns the effective value of every user-editable world flag.
func (w *World) Values() (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	for _, k := range w.reg.Keys(ScopeWorld, true) {
		var v any
		if err := w.Load(k, &v); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return out, nil
}

// Flags is the typed view of the world flags.
type Flags struct {
	EnablePlayerAchievements bool   `json:"enablePlayerAchievements"`
	HideUnearned             bool   `json:"hideUnearnedAchievements"`
	CloakUnearned            bool   `json:"cloakUnearnedAchievements"`
	CloakedText              string `json:"cloakedText"`
	ShowOnlyToAwardedUser    bool   `json:"showOnlyToAwardedUser"`
	ShowTagsToPlayers        bool   `json:"showTagsToPlayers"`
	DefaultSound             string `json:"defaultSound"`
	DefaultImage             string `json:"defaultImage"`
}

func (w *World) Flags() (Flags, error) {
	var f Flags
	load := []struct {
		key string
		dst any
	}{
		{KeyEnablePlayerAchievements, &f.EnablePlayerAchievements},
		{KeyHideUnearned, &f.HideUnearned},
		{KeyCloakUnearned, &f.CloakUnearned},
		{KeyCloakedText, &f.CloakedText},
		{KeyShowOnlyToAwardedUser, &f.ShowOnlyToAwardedUser},
		{KeyShowTagsToPlayers, &f.ShowTagsToPlayers},
		{KeyDefaultSound, &f.DefaultSound},
		{KeyDefaultImage, &f.DefaultImage},
	}
	for _, l := range load {
		if err := w.Load(l.key, l.dst); err != nil {
			return f, err
		}
	}
	return f, nil
}
