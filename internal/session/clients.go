package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"achievements.party/internal/achievements"
	"achievements.party/internal/events"
	"achievements.party/internal/notify"
	"achievements.party/internal/protocol"
	"achievements.party/internal/roster"
	"achievements.party/internal/settings"
)

type client struct {
	id        string
	userID    string
	admin     bool
	character string
	events    bool
	out       chan []byte
}

type ConnectRequest struct {
	UserID   string
	UserName string
	Admin    bool
	// Character is the subject the user plays. An empty ID keeps the
	// character the roster already assigns to the user.
	Character roster.Subject
	// Events subscribes the client to EVENT frames.
	Events bool
	Out    chan []byte
}

type ConnectResponse struct {
	SessionID string
	Caller    Caller
	Revision  uint64
	Settings  map[string]json.RawMessage
}

type connectReq struct {
	ConnectRequest
	Resp chan connectResult
}

type connectResult struct {
	resp ConnectResponse
	err  error
}

// Connect registers a client connection. Pending awards are not delivered
// here; call Replay once the transport drains req.Out.
func (s *Session) Connect(ctx context.Context, req ConnectRequest) (ConnectResponse, error) {
	if req.Out == nil {
		return ConnectResponse{}, fmt.Errorf("%w: connect without output channel", achievements.ErrValidation)
	}
	r := connectReq{ConnectRequest: req, Resp: make(chan connectResult, 1)}
	select {
	case s.join <- r:
	case <-s.done:
		return ConnectResponse{}, ErrSessionClosed
	case <-ctx.Done():
		return ConnectResponse{}, ctx.Err()
	}
	select {
	case res := <-r.Resp:
		return res.resp, res.err
	case <-s.done:
		return ConnectResponse{}, ErrSessionClosed
	case <-ctx.Done():
		return ConnectResponse{}, ctx.Err()
	}
}

// Disconnect unregisters a connection. It never blocks once the session is
// closed.
func (s *Session) Disconnect(sessionID string) {
	select {
	case s.leave <- sessionID:
	case <-s.done:
	}
}

func (s *Session) handleConnect(req connectReq) connectResult {
	if req.UserID == "" {
		return connectResult{err: fmt.Errorf("%w: user id required", achievements.ErrValidation)}
	}

	changed := false
	if c := req.Character; c.ID != "" {
		if cur, ok := s.roster.Subject(c.ID); ok {
			c.Kind = cur.Kind
			if c.Name == "" {
				c.Name = cur.Name
			}
		}
		if s.roster.UpsertSubject(c) {
			changed = true
		}
	}
	u := helloUser(s.roster, req.ConnectRequest)
	if s.roster.UpsertUser(u) {
		changed = true
	}
	if changed {
		if err := s.world.Save(settings.KeyRoster, s.roster); err != nil {
			return connectResult{err: err}
		}
		s.revision++
	}

	c := &client{
		id:        uuid.NewString(),
		userID:    req.UserID,
		admin:     req.Admin,
		character: u.Character,
		events:    req.Events,
		out:       req.Out,
	}
	s.clients[c.id] = c
	s.log.Printf("connect world=%s user=%s admin=%v session=%s", s.cfg.WorldID, req.UserID, req.Admin, c.id)

	s.publish()
	if changed {
		s.broadcastChanged()
	}

	return connectResult{resp: ConnectResponse{
		SessionID: c.id,
		Caller:    Caller{UserID: req.UserID, Admin: req.Admin, CharacterID: u.Character},
		Revision:  s.revision,
		Settings:  s.view.Load().Settings,
	}}
}

// helloUser merges a connect request into the user's roster entry. A HELLO
// without a name or character keeps the stored ones, and the stored admin
// flag is never cleared by a connection that lacks the admin token.
func helloUser(r roster.Roster, req ConnectRequest) roster.User {
	u := roster.User{ID: req.UserID, Name: req.UserName, Admin: req.Admin, Character: req.Character.ID}
	if cur, ok := r.User(req.UserID); ok {
		if u.Name == "" {
			u.Name = cur.Name
		}
		if u.Character == "" {
			u.Character = cur.Character
		}
		u.Admin = u.Admin || cur.Admin
	}
	if u.Name == "" {
		u.Name = req.UserID
	}
	return u
}

type ReplayResult struct {
	// Delivered lists the awards handed to the connection, in queue order.
	Delivered []string
	// Remaining counts awards left queued because the controller's
	// connections had no room for them.
	Remaining int
}

// Replay delivers the awards queued for the connection's character while
// its user was away. Awards that do not fit in the output channel stay
// queued; the transport retries while Remaining is non-zero.
func (s *Session) Replay(ctx context.Context, sessionID string) (ReplayResult, error) {
	return exec(ctx, s, func() (ReplayResult, error) {
		c, ok := s.clients[sessionID]
		if !ok || c.character == "" {
			return ReplayResult{}, nil
		}
		before := len(s.store.PendingFor(c.character))
		if before == 0 {
			return ReplayResult{}, nil
		}
		delivered, remaining, err := s.wf.ReplayPending(c.character)
		if err != nil {
			s.log.Printf("replay pending world=%s subject=%s: %v", s.cfg.WorldID, c.character, err)
			return ReplayResult{}, err
		}
		s.metrics.Replayed.Add(uint64(len(delivered)))
		if len(remaining) != before {
			s.revision++
			s.publish()
			s.broadcastChanged()
		}
		return ReplayResult{Delivered: delivered, Remaining: len(remaining)}, nil
	})
}

func (s *Session) handleDisconnect(id string) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	delete(s.clients, id)
	s.log.Printf("disconnect world=%s user=%s session=%s", s.cfg.WorldID, c.userID, id)
	s.publish()
}

// Deliver implements notify.Sink. Slow clients drop frames rather than
// stall the session.
func (s *Session) Deliver(t notify.Target, frame any) []string {
	b, err := json.Marshal(frame)
	if err != nil {
		s.log.Printf("encode frame: %v", err)
		return nil
	}
	var accepted []string
	for _, c := range s.clients {
		if !matches(t, c) {
			continue
		}
		if !trySend(c.out, b) {
			s.metrics.Dropped.Add(1)
			continue
		}
		accepted = append(accepted, c.userID)
	}
	return accepted
}

func matches(t notify.Target, c *client) bool {
	if t.AdminsOnly && !c.admin {
		return false
	}
	if len(t.UserIDs) == 0 {
		return true
	}
	for _, id := range t.UserIDs {
		if id == c.userID {
			return true
		}
	}
	return false
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

// SubjectExists implements achievements.Directory.
func (s *Session) SubjectExists(subjectID string) bool { return s.roster.Awardable(subjectID) }

// ControllerOnline implements achievements.Directory.
func (s *Session) ControllerOnline(subjectID string) bool {
	u, ok := s.roster.Controller(subjectID)
	if !ok {
		return false
	}
	return s.userOnline(u.ID)
}

func (s *Session) userOnline(userID string) bool {
	for _, c := range s.clients {
		if c.userID == userID {
			return true
		}
	}
	return false
}

func (s *Session) broadcastChanged() {
	s.Deliver(notify.Target{}, protocol.ChangedMsg{
		Type:            protocol.TypeChanged,
		ProtocolVersion: protocol.Version,
		Revision:        s.revision,
	})
}

func (s *Session) onAwarded(e events.AchievementAwarded) {
	s.metrics.Awards.Add(1)
	s.deliverEvent(protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Name:            events.NameAwarded,
		AchievementID:   e.AchievementID,
		SubjectID:       e.SubjectID,
		Late:            e.Late,
	})
	if s.eventLogger != nil {
		_ = s.eventLogger.WriteEvent(EventLogEntry{
			At: e.At.UTC(), WorldID: s.cfg.WorldID, Name: events.NameAwarded,
			AchievementID: e.AchievementID, SubjectID: e.SubjectID, Late: e.Late,
		})
	}
}

func (s *Session) onUnawarded(e events.AchievementUnawarded) {
	s.metrics.Unawards.Add(1)
	s.deliverEvent(protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Name:            events.NameUnawarded,
		AchievementID:   e.AchievementID,
		SubjectID:       e.SubjectID,
	})
	if s.eventLogger != nil {
		_ = s.eventLogger.WriteEvent(EventLogEntry{
			At: e.At.UTC(), WorldID: s.cfg.WorldID, Name: events.NameUnawarded,
			AchievementID: e.AchievementID, SubjectID: e.SubjectID,
		})
	}
}

func (s *Session) deliverEvent(msg protocol.EventMsg) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, c := range s.clients {
		if !c.events {
			continue
		}
		if !trySend(c.out, b) {
			s.metrics.Dropped.Add(1)
		}
	}
}
