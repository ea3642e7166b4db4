// Package client is a websocket client for the achievements server. It
// correlates REQ/RESP pairs and surfaces server pushes as notices.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"achievements.party/internal/protocol"
)

var ErrClosed = errors.New("client closed")

type Config struct {
	URL       string
	UserID    string
	UserName  string
	Character *protocol.CharacterRef
	Token     string
	// Events subscribes to EVENT frames.
	Events   bool
	MaxQueue int
}

// RemoteError is a failed RESP.
type RemoteError struct {
	Op      string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Notice is a server push. Exactly one of the typed fields is set.
type Notice struct {
	Type    string
	Notify  *protocol.NotifyMsg
	Pending *protocol.PendingMsg
	Event   *protocol.EventMsg
	Changed *protocol.ChangedMsg
}

type Client struct {
	cfg     Config
	conn    *websocket.Conn
	welcome protocol.WelcomeMsg

	writeMu sync.Mutex

	mu      sync.Mutex
	waiting map[string]chan protocol.RespMsg
	err     error

	seq     atomic.Uint64
	notices chan Notice
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects, performs the HELLO/WELCOME handshake and starts reading.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 64
	}
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, cfg.URL, http.Header{})
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		UserID:          cfg.UserID,
		UserName:        cfg.UserName,
		Character:       cfg.Character,
		Capabilities: protocol.HelloCapabilities{
			Events:   cfg.Events,
			MaxQueue: cfg.MaxQueue,
		},
	}
	if cfg.Token != "" {
		hello.Auth = &protocol.HelloAuth{Token: cfg.Token}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, fmt.Errorf("handshake rejected: %s", ce.Text)
		}
		return nil, err
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil || w.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", msg)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		welcome: w,
		waiting: map[string]chan protocol.RespMsg{},
		notices: make(chan Notice, cfg.MaxQueue),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

func (c *Client) Admin() bool { return c.welcome.Role == protocol.RoleAdmin }

// Setting decodes one world setting from the WELCOME snapshot.
func (c *Client) Setting(key string, dst any) bool {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(c.welcome.Settings, &all); err != nil {
		return false
	}
	raw, ok := all[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Notices delivers NOTIFY, PENDING, EVENT and CHANGED frames. A slow
// consumer loses notices rather than stalling responses.
func (c *Client) Notices() <-chan Notice { return c.notices }

func (c *Client) Dropped() uint64 { return c.dropped.Load() }

func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Call sends op and waits for its RESP. A successful payload is decoded into
// out when out is non-nil.
func (c *Client) Call(ctx context.Context, op string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return err
		}
		raw = b
	}
	id := "r" + strconv.FormatUint(c.seq.Add(1), 10)
	ch := make(chan protocol.RespMsg, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	c.waiting[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiting, id)
		c.mu.Unlock()
	}()

	req := protocol.ReqMsg{Type: protocol.TypeReq, ProtocolVersion: protocol.Version, ID: id, Op: op, Args: raw}
	if err := c.write(req); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return &RemoteError{Op: op, Code: resp.Code, Message: resp.Error}
		}
		if out != nil && len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, out); err != nil {
				return fmt.Errorf("%s: decode payload: %w", op, err)
			}
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() { close(c.done) })
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeResp:
			var r protocol.RespMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			c.mu.Lock()
			ch := c.waiting[r.ID]
			c.mu.Unlock()
			if ch != nil {
				ch <- r
			}
		case protocol.TypeNotify:
			var n protocol.NotifyMsg
			if json.Unmarshal(msg, &n) == nil {
				c.push(Notice{Type: base.Type, Notify: &n})
			}
		case protocol.TypePending:
			var p protocol.PendingMsg
			if json.Unmarshal(msg, &p) == nil {
				c.push(Notice{Type: base.Type, Pending: &p})
			}
		case protocol.TypeEvent:
			var e protocol.EventMsg
			if json.Unmarshal(msg, &e) == nil {
				c.push(Notice{Type: base.Type, Event: &e})
			}
		case protocol.TypeChanged:
			var ch protocol.ChangedMsg
			if json.Unmarshal(msg, &ch) == nil {
				c.push(Notice{Type: base.Type, Changed: &ch})
			}
		}
	}
}

func (c *Client) push(n Notice) {
	select {
	case c.notices <- n:
	default:
		c.dropped.Add(1)
	}
}
