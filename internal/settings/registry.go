// Package settings is the world-scoped key/value settings layer: a registry
// of known keys with scope, type, default and range, and stores that persist
// JSON values per world.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	ErrUnknownKey = errors.New("unknown setting")
	ErrReadOnly   = errors.New("setting is not user-editable")
	ErrInvalid    = errors.New("invalid setting value")
)

type Scope int

const (
	// ScopeWorld values are shared by every participant of a world.
	ScopeWorld Scope = iota
	// ScopeClient values live on each client and never reach the server store.
	ScopeClient
)

type Kind int

const (
	KindBool Kind = iota
	KindString
	KindNumber
	KindObject
	KindArray
)

type Setting struct {
	Key   string
	Scope Scope
	Kind  Kind
	// Config marks values a participant may edit. Data blobs (achievements,
	// awards, ...) are not config.
	Config  bool
	Default any

	// KindNumber only.
	Min, Max, Step float64
}

type Registry struct {
	mu       sync.RWMutex
	settings map[string]Setting
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{settings: map[string]Setting{}}
}

func (r *Registry) Register(s Setting) error {
	if s.Key == "" {
		return fmt.Errorf("register setting: empty key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settings[s.Key]; ok {
		return fmt.Errorf("register setting %q: already registered", s.Key)
	}
	r.settings[s.Key] = s
	r.order = append(r.order, s.Key)
	return nil
}

func (r *Registry) Lookup(key string) (Setting, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settings[key]
	return s, ok
}

// SetDefault replaces the default of a registered key after validating it.
func (r *Registry) SetDefault(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	norm, err := r.Normalize(key, raw)
	if err != nil {
		return err
	}
	var def any
	if err := json.Unmarshal(norm, &def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.settings[key]
	s.Default = def
	r.settings[key] = s
	return nil
}

// Keys lists registered keys of the given scope in registration order.
func (r *Registry) Keys(scope Scope, configOnly bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, k := range r.order {
		s := r.settings[k]
		if s.Scope != scope {
			continue
		}
		if configOnly && !s.Config {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Normalize checks raw against the key's kind and range and returns the
// canonical JSON encoding. Numbers are clamped and snapped to Step.
func (r *Registry) Normalize(key string, raw json.RawMessage) (json.RawMessage, error) {
	s, ok := r.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	switch s.Kind {
	case KindBool:
		if _, ok := v.(bool); !ok {
			return nil, fmt.Errorf("%w: %s: want bool", ErrInvalid, key)
		}
	case KindString:
		if _, ok := v.(string); !ok {
			return nil, fmt.Errorf("%w: %s: want string", ErrInvalid, key)
		}
	case KindNumber:
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) {
			return nil, fmt.Errorf("%w: %s: want number", ErrInvalid, key)
		}
		v = Snap(f, s.Min, s.Max, s.Step)
	case KindObject:
		if _, ok := v.(map[string]any); !ok {
			return nil, fmt.Errorf("%w: %s: want object", ErrInvalid, key)
		}
	case KindArray:
		if _, ok := v.([]any); !ok {
			return nil, fmt.Errorf("%w: %s: want array", ErrInvalid, key)
		}
	}
	return json.Marshal(v)
}

// Snap clamps v into [min,max] and rounds it to the nearest multiple of step
// from min. A zero step or an empty range leaves that part unchanged.
func Snap(v, min, max, step float64) float64 {
	if max > min {
		if v < min {
			v = min
		}
		if v > max {
			v = max
		}
	}
	if step > 0 {
		v = min + math.Round((v-min)/step)*step
		// Trim float noise such as 0.30000000000000004.
		v = math.Round(v*1e9) / 1e9
	}
	return v
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
