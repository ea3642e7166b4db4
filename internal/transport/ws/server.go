package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"achievements.party/internal/api"
	"achievements.party/internal/protocol"
	"achievements.party/internal/roster"
	"achievements.party/internal/session"
)

type Options struct {
	// AdminToken grants the admin role to clients presenting it. Empty means
	// nobody is admin over the socket.
	AdminToken string
	// AllowedOrigins restricts browser origins. Empty allows all.
	AllowedOrigins []string
	// PingInterval is how often the server pings an idle client. PongWait
	// is how long it waits for any frame or pong before dropping it. Zero
	// values use 25s and 60s.
	PingInterval time.Duration
	PongWait     time.Duration
}

const (
	writeWait = 5 * time.Second

	replayRetry    = 100 * time.Millisecond
	replayAttempts = 50
)

type Server struct {
	sess    *session.Session
	handler *api.Handler
	log     *log.Logger
	opts    Options

	upgrader websocket.Upgrader
}

func NewServer(s *session.Session, h *api.Handler, logger *log.Logger, opts Options) *Server {
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingInterval >= opts.PongWait {
		opts.PingInterval = opts.PongWait / 2
	}
	return &Server{
		sess:    s,
		handler: h,
		log:     logger,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		cr, out, ok := s.handshake(ctx, conn)
		if !ok {
			return
		}
		defer s.sess.Disconnect(cr.SessionID)

		// Any frame or pong keeps the connection alive.
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		})

		// Writer goroutine.
		go func() {
			ping := time.NewTicker(s.opts.PingInterval)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
						cancel()
						return
					}
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()
		go s.replay(ctx, cr.SessionID)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.reply(ctx, out, protocol.RespMsg{Code: protocol.ErrProtoBadRequest, Error: "malformed frame"})
				continue
			}
			if base.Type != protocol.TypeReq {
				continue
			}
			var req protocol.ReqMsg
			if err := json.Unmarshal(msg, &req); err != nil {
				s.reply(ctx, out, protocol.RespMsg{Code: protocol.ErrProtoBadRequest, Error: "malformed REQ"})
				continue
			}
			if req.ProtocolVersion != protocol.Version {
				s.reply(ctx, out, protocol.RespMsg{ID: req.ID, Code: protocol.ErrProtoBadRequest, Error: "bad protocol_version"})
				continue
			}
			s.reply(ctx, out, s.serve(ctx, cr.Caller, req))
		}
	}
}

// replay hands the caller's queued awards to the session once the writer is
// draining out. Awards that do not fit are retried until the queue is empty,
// the connection ends, or the attempts run out; the rest wait for the next
// connection.
func (s *Server) replay(ctx context.Context, sessionID string) {
	for i := 0; i < replayAttempts; i++ {
		res, err := s.sess.Replay(ctx, sessionID)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Printf("replay session=%s: %v", sessionID, err)
			}
			return
		}
		if res.Remaining == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(replayRetry):
		}
	}
}

func (s *Server) serve(ctx context.Context, caller session.Caller, req protocol.ReqMsg) protocol.RespMsg {
	resp := protocol.RespMsg{ID: req.ID}
	v, err := s.handler.Handle(ctx, caller, req.Op, req.Args)
	if err != nil {
		resp.Code = api.CodeFor(err)
		resp.Error = err.Error()
		if resp.Code == protocol.ErrInternal {
			s.log.Printf("op=%s user=%s: %v", req.Op, caller.UserID, err)
		}
		return resp
	}
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			resp.Code = protocol.ErrInternal
			resp.Error = err.Error()
			return resp
		}
		resp.Payload = b
	}
	resp.OK = true
	return resp
}

// reply queues a RESP behind any pending notifications. Unlike broadcasts,
// responses are never dropped; the call blocks until the writer drains or
// the connection ends.
func (s *Server) reply(ctx context.Context, out chan []byte, resp protocol.RespMsg) {
	resp.Type = protocol.TypeResp
	resp.ProtocolVersion = protocol.Version
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (session.ConnectResponse, chan []byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return session.ConnectResponse{}, nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return session.ConnectResponse{}, nil, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "malformed HELLO")
		return session.ConnectResponse{}, nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return session.ConnectResponse{}, nil, false
	}
	hello.UserID = strings.TrimSpace(hello.UserID)
	if hello.UserID == "" {
		closeWith(conn, "user_id required")
		return session.ConnectResponse{}, nil, false
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out := make(chan []byte, maxQ)

	req := session.ConnectRequest{
		UserID:   hello.UserID,
		UserName: hello.UserName,
		Admin:    s.isAdmin(hello.Auth),
		Events:   hello.Capabilities.Events,
		Out:      out,
	}
	if c := hello.Character; c != nil {
		req.Character = roster.Subject{ID: strings.TrimSpace(c.ID), Name: c.Name, Kind: roster.KindCharacter}
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := s.sess.Connect(cctx, req)
	if err != nil {
		s.log.Printf("connect user=%s: %v", hello.UserID, err)
		closeWith(conn, api.CodeFor(err))
		return session.ConnectResponse{}, nil, false
	}

	role := protocol.RolePlayer
	if resp.Caller.Admin {
		role = protocol.RoleAdmin
	}
	settings, _ := json.Marshal(resp.Settings)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       resp.SessionID,
		WorldID:         s.sess.ID(),
		UserID:          resp.Caller.UserID,
		Role:            role,
		CharacterID:     resp.Caller.CharacterID,
		Revision:        resp.Revision,
		Settings:        settings,
	}
	// The writer goroutine is not running yet and replay starts after it, so
	// WELCOME is always the first frame.
	if err := writeJSON(conn, welcome); err != nil {
		s.sess.Disconnect(resp.SessionID)
		return session.ConnectResponse{}, nil, false
	}
	return resp, out, true
}

func (s *Server) isAdmin(auth *protocol.HelloAuth) bool {
	if s.opts.AdminToken == "" || auth == nil || auth.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(auth.Token), []byte(s.opts.AdminToken)) == 1
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := map[string]struct{}{}
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
