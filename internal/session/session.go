// Package session runs one world: a single goroutine owns the achievement
// store, roster and connected clients, and every mutation is executed on it
// in arrival order. Reads are served from an immutable snapshot published
// after each change.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"achievements.party/internal/achievements"
	"achievements.party/internal/events"
	"achievements.party/internal/notify"
	"achievements.party/internal/roster"
	"achievements.party/internal/settings"
)

var ErrSessionClosed = errors.New("session closed")

type Config struct {
	WorldID  string
	Messages notify.Messages
	// Roster is merged into the persisted roster when the session opens.
	Roster roster.Roster
	Logger *log.Logger
}

// Caller is the identity a request runs under.
type Caller struct {
	UserID      string `json:"user_id"`
	Admin       bool   `json:"admin"`
	CharacterID string `json:"character_id,omitempty"`
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type EventLogger interface {
	WriteEvent(entry EventLogEntry) error
}

// Archiver keeps a copy of an export before it is overwritten.
type Archiver interface {
	Backup(worldID, reason string, export []byte) (string, error)
}

type Session struct {
	cfg   Config
	log   *log.Logger
	world *settings.World
	bus   *events.Bus

	// Loop-owned state.
	store    *achievements.Store
	wf       *achievements.Workflow
	bcast    *notify.Broadcaster
	roster   roster.Roster
	flags    settings.Flags
	clients  map[string]*client
	revision uint64

	auditLogger AuditLogger
	eventLogger EventLogger
	archiver    Archiver

	view    atomic.Pointer[View]
	metrics Metrics
	now     func() time.Time

	join  chan connectReq
	leave chan string
	calls chan call

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
}

// New opens the world's persisted state. The returned session does nothing
// until Run is called.
func New(world *settings.World, cfg Config) (*Session, error) {
	if cfg.WorldID == "" {
		cfg.WorldID = world.ID()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Session{
		cfg:     cfg,
		log:     logger,
		world:   world,
		bus:     events.NewBus(),
		clients: map[string]*client{},
		now:     time.Now,
		join:    make(chan connectReq, 64),
		leave:   make(chan string, 64),
		calls:   make(chan call, 256),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	store, err := achievements.Open(world)
	if err != nil {
		return nil, err
	}
	s.store = store
	if err := world.Load(settings.KeyRoster, &s.roster); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if s.roster.Merge(cfg.Roster) {
		if err := world.Save(settings.KeyRoster, s.roster); err != nil {
			return nil, fmt.Errorf("save roster: %w", err)
		}
	}
	if s.flags, err = world.Flags(); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	s.bcast = notify.NewBroadcaster(cfg.Messages, &s.roster, func() settings.Flags { return s.flags }, s)
	s.wf = achievements.NewWorkflow(store, s, s.bcast, s.bus)
	s.bus.Awarded.Subscribe(s.onAwarded)
	s.bus.Unawarded.Subscribe(s.onUnawarded)

	s.publish()
	return s, nil
}

func (s *Session) SetAuditLogger(l AuditLogger) { s.auditLogger = l }
func (s *Session) SetEventLogger(l EventLogger) { s.eventLogger = l }
func (s *Session) SetArchiver(a Archiver)       { s.archiver = a }

func (s *Session) ID() string { return s.cfg.WorldID }

// Events exposes the award/unaward bus. Handlers run on the session
// goroutine and must not call back into the session synchronously.
func (s *Session) Events() *events.Bus { return s.bus }

func (s *Session) Run(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			req.Resp <- s.handleConnect(req)
		case id := <-s.leave:
			s.handleDisconnect(id)
		case c := <-s.calls:
			v, err := c.fn()
			c.resp <- callResult{v: v, err: err}
		}
	}
}

// Stop ends Run. Pending and later requests fail with ErrSessionClosed.
func (s *Session) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

type call struct {
	fn   func() (any, error)
	resp chan callResult
}

type callResult struct {
	v   any
	err error
}

// exec runs fn on the session goroutine and waits for its result.
func exec[T any](ctx context.Context, s *Session, fn func() (T, error)) (T, error) {
	var zero T
	resp := make(chan callResult, 1)
	c := call{
		fn:   func() (any, error) { return fn() },
		resp: resp,
	}
	select {
	case s.calls <- c:
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.err != nil {
			return zero, r.err
		}
		v, _ := r.v.(T)
		return v, nil
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
