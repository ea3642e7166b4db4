package session

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"achievements.party/internal/settings"
)

// Runtime is the process-wide state: the settings registry, the backing
// store and the open sessions. Construct one in main and pass it down.
type Runtime struct {
	mu          sync.Mutex
	initialized bool

	registry *settings.Registry
	store    settings.Store
	log      *log.Logger
	sessions map[string]*Session
}

func NewRuntime(store settings.Store, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runtime{
		registry: settings.NewRegistry(),
		store:    store,
		log:      logger,
		sessions: map[string]*Session{},
	}
}

// Init registers the known settings and applies default overrides. Only the
// first call has any effect.
func (rt *Runtime) Init(defaults map[string]any) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.initialized {
		return nil
	}
	if err := settings.RegisterDefaults(rt.registry); err != nil {
		return err
	}
	for _, k := range settings.SortedKeys(defaults) {
		if err := rt.registry.SetDefault(k, defaults[k]); err != nil {
			return fmt.Errorf("default %s: %w", k, err)
		}
	}
	rt.initialized = true
	return nil
}

func (rt *Runtime) Registry() *settings.Registry { return rt.registry }

// Open returns the session for cfg.WorldID, creating it on first use.
func (rt *Runtime) Open(cfg Config) (*Session, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.initialized {
		return nil, fmt.Errorf("runtime not initialized")
	}
	if cfg.WorldID == "" {
		return nil, fmt.Errorf("world id required")
	}
	if s, ok := rt.sessions[cfg.WorldID]; ok {
		return s, nil
	}
	if cfg.Logger == nil {
		cfg.Logger = rt.log
	}
	s, err := New(settings.NewWorld(rt.store, cfg.WorldID, rt.registry), cfg)
	if err != nil {
		return nil, fmt.Errorf("open world %s: %w", cfg.WorldID, err)
	}
	rt.sessions[cfg.WorldID] = s
	return s, nil
}

func (rt *Runtime) Session(worldID string) (*Session, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s, ok := rt.sessions[worldID]
	return s, ok
}

// Sessions returns open sessions ordered by world id.
func (rt *Runtime) Sessions() []*Session {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]*Session, 0, len(rt.sessions))
	for _, s := range rt.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// StopAll stops every session.
func (rt *Runtime) StopAll() {
	for _, s := range rt.Sessions() {
		s.Stop()
	}
}
