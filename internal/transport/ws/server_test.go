package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"achievements.party/internal/api"
	"achievements.party/internal/protocol"
	"achievements.party/internal/roster"
	"achievements.party/internal/session"
	"achievements.party/internal/settings"
)

const testToken = "gm-token"

func newTestServer(t *testing.T) string {
	t.Helper()
	return newTestServerWith(t, Options{AdminToken: testToken})
}

func newTestServerWith(t *testing.T, opts Options) string {
	t.Helper()
	rt := session.NewRuntime(settings.NewMemoryStore(), nil)
	if err := rt.Init(nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	sess, err := rt.Open(session.Config{
		WorldID: "w1",
		Roster: roster.Roster{
			Users: []roster.User{{ID: "u1", Name: "Alice", Character: "Actor.123"}, {ID: "u2", Name: "Bob", Character: "Actor.456"}},
			Subjects: []roster.Subject{
				{ID: "Actor.123", Name: "Grog", Kind: roster.KindCharacter},
				{ID: "Actor.456", Name: "Pike", Kind: roster.KindCharacter},
			},
		},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sess.Run(ctx) }()

	logger := log.New(io.Discard, "", 0)
	srv := NewServer(sess, api.NewHandler(sess), logger, opts)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", srv.Handler())
	hs := httptest.NewServer(mux)
	t.Cleanup(func() {
		hs.Close()
		cancel()
		<-sess.Done()
	})
	return "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/ws"
}

type testConn struct {
	t      *testing.T
	c      *websocket.Conn
	nextID int
	queued [][]byte
}

func dial(t *testing.T, url string, hello protocol.HelloMsg) (*testConn, protocol.WelcomeMsg) {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	hello.Type = protocol.TypeHello
	hello.ProtocolVersion = protocol.Version
	if hello.Capabilities.MaxQueue == 0 {
		hello.Capabilities.MaxQueue = 64
	}
	if err := c.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	tc := &testConn{t: t, c: c}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(tc.read(), &w); err != nil || w.Type != protocol.TypeWelcome {
		t.Fatalf("welcome=%+v err=%v", w, err)
	}
	return tc, w
}

func (tc *testConn) read() []byte {
	tc.t.Helper()
	_ = tc.c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := tc.c.ReadMessage()
	if err != nil {
		tc.t.Fatalf("read: %v", err)
	}
	return b
}

// call sends a REQ and reads until its RESP. Other frames are kept for wait.
func (tc *testConn) call(op string, args any) protocol.RespMsg {
	tc.t.Helper()
	tc.nextID++
	id := fmt.Sprintf("r%d", tc.nextID)
	raw, _ := json.Marshal(args)
	req := protocol.ReqMsg{Type: protocol.TypeReq, ProtocolVersion: protocol.Version, ID: id, Op: op, Args: raw}
	if err := tc.c.WriteJSON(req); err != nil {
		tc.t.Fatalf("write req: %v", err)
	}
	for {
		b := tc.read()
		base, _ := protocol.DecodeBase(b)
		if base.Type != protocol.TypeResp {
			tc.queued = append(tc.queued, b)
			continue
		}
		var resp protocol.RespMsg
		if err := json.Unmarshal(b, &resp); err != nil {
			tc.t.Fatalf("decode resp: %v", err)
		}
		if resp.ID == id {
			return resp
		}
	}
}

func (tc *testConn) wait(typ string) []byte {
	tc.t.Helper()
	for len(tc.queued) > 0 {
		b := tc.queued[0]
		tc.queued = tc.queued[1:]
		if base, _ := protocol.DecodeBase(b); base.Type == typ {
			return b
		}
	}
	for {
		b := tc.read()
		if base, _ := protocol.DecodeBase(b); base.Type == typ {
			return b
		}
	}
}

func (tc *testConn) seen(typ string) bool {
	for _, b := range tc.queued {
		if base, _ := protocol.DecodeBase(b); base.Type == typ {
			return true
		}
	}
	return false
}

var firstBlood = map[string]any{
	"id": "a1", "title": "First Blood", "description": "Kill one enemy",
	"image": "img.png", "cloakedImage": "img.png", "sound": "s.ogg",
}

func TestServer_AwardRoundTrip(t *testing.T) {
	url := newTestServer(t)

	gm, w := dial(t, url, protocol.HelloMsg{UserID: "gm", UserName: "GM", Auth: &protocol.HelloAuth{Token: testToken}})
	if w.Role != protocol.RoleAdmin || w.WorldID != "w1" || w.SessionID == "" {
		t.Fatalf("gm welcome=%+v", w)
	}
	alice, w := dial(t, url, protocol.HelloMsg{UserID: "u1", UserName: "Alice", Character: &protocol.CharacterRef{ID: "Actor.123"}})
	if w.Role != protocol.RolePlayer || w.CharacterID != "Actor.123" {
		t.Fatalf("alice welcome=%+v", w)
	}

	if resp := gm.call("achievements.create", firstBlood); !resp.OK {
		t.Fatalf("create: %+v", resp)
	}
	if resp := alice.call("achievements.create", firstBlood); resp.OK || resp.Code != protocol.ErrNoPermission {
		t.Fatalf("player create: %+v", resp)
	}
	if resp := gm.call("achievements.award", map[string]string{"id": "a1", "subject": "Actor.123"}); !resp.OK {
		t.Fatalf("award: %+v", resp)
	}

	var n protocol.NotifyMsg
	if err := json.Unmarshal(alice.wait(protocol.TypeNotify), &n); err != nil {
		t.Fatalf("decode notify: %v", err)
	}
	if n.AchievementID != "a1" || n.SubjectID != "Actor.123" || n.Heading != "Achievement Unlocked!" {
		t.Fatalf("notify=%+v", n)
	}

	resp := alice.call("api.doesCharacterHaveAchievement", map[string]string{"id": "a1", "subject": "Actor.123"})
	var res api.Result[bool]
	if err := json.Unmarshal(resp.Payload, &res); err != nil || !res.Payload || res.ErrorMessage != "" {
		t.Fatalf("api result=%+v err=%v", res, err)
	}

	if resp := gm.call("nope.op", nil); resp.OK || resp.Code != protocol.ErrUnknownOp {
		t.Fatalf("unknown op: %+v", resp)
	}
	if resp := gm.call("achievements.award", map[string]string{"id": "missing", "subject": "Actor.123"}); resp.Code != protocol.ErrNotFound {
		t.Fatalf("award missing: %+v", resp)
	}
}

func TestServer_ShowOnlyToAwardedUser(t *testing.T) {
	url := newTestServer(t)
	gm, _ := dial(t, url, protocol.HelloMsg{UserID: "gm", Auth: &protocol.HelloAuth{Token: testToken}})
	alice, _ := dial(t, url, protocol.HelloMsg{UserID: "u1", Character: &protocol.CharacterRef{ID: "Actor.123"}})
	bob, _ := dial(t, url, protocol.HelloMsg{UserID: "u2", Character: &protocol.CharacterRef{ID: "Actor.456"}})

	if resp := gm.call("achievements.create", firstBlood); !resp.OK {
		t.Fatalf("create: %+v", resp)
	}
	if resp := gm.call("settings.set", map[string]any{"key": "showOnlyToAwardedUser", "value": true}); !resp.OK {
		t.Fatalf("settings.set: %+v", resp)
	}
	if resp := gm.call("achievements.award", map[string]string{"id": "a1", "subject": "Actor.123"}); !resp.OK {
		t.Fatalf("award: %+v", resp)
	}
	alice.wait(protocol.TypeNotify)

	// Anything queued for bob before the award landed ahead of this RESP.
	bob.call("roster.list", nil)
	if bob.seen(protocol.TypeNotify) {
		t.Fatalf("bob received a NOTIFY meant for alice")
	}
}

func TestServer_ReplaysQueueLargerThanBuffer(t *testing.T) {
	url := newTestServer(t)
	gm, _ := dial(t, url, protocol.HelloMsg{UserID: "gm", Auth: &protocol.HelloAuth{Token: testToken}})

	const total = 12
	for i := 0; i < total; i++ {
		d := map[string]any{}
		for k, v := range firstBlood {
			d[k] = v
		}
		d["id"] = fmt.Sprintf("a%02d", i)
		if resp := gm.call("achievements.create", d); !resp.OK {
			t.Fatalf("create: %+v", resp)
		}
		var res struct{ Pending bool }
		resp := gm.call("achievements.award", map[string]string{"id": d["id"].(string), "subject": "Actor.456"})
		if !resp.OK || json.Unmarshal(resp.Payload, &res) != nil || !res.Pending {
			t.Fatalf("award offline: %+v", resp)
		}
	}

	// Bob's queue holds fewer frames than he has awards waiting.
	bob, _ := dial(t, url, protocol.HelloMsg{UserID: "u2", Capabilities: protocol.HelloCapabilities{MaxQueue: 8}})
	got := map[string]bool{}
	for len(got) < total {
		var n protocol.NotifyMsg
		b := bob.read()
		if json.Unmarshal(b, &n) != nil || n.Type != protocol.TypeNotify {
			continue
		}
		if !n.Late || n.SubjectID != "Actor.456" {
			t.Fatalf("replayed notify=%+v", n)
		}
		got[n.AchievementID] = true
	}

	// The pending view is republished right after the last NOTIFY is queued.
	deadline := time.Now().Add(time.Second)
	for {
		var pending map[string][]string
		resp := gm.call("achievements.pending", nil)
		if !resp.OK || json.Unmarshal(resp.Payload, &pending) != nil {
			t.Fatalf("pending: %+v", resp)
		}
		if len(pending) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("pending after replay=%v", pending)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_DropsClientThatIgnoresPings(t *testing.T) {
	url := newTestServerWith(t, Options{PingInterval: 30 * time.Millisecond, PongWait: 120 * time.Millisecond})
	c, _ := dial(t, url, protocol.HelloMsg{UserID: "u1"})

	// Not reading means pings go unanswered.
	time.Sleep(400 * time.Millisecond)
	_ = c.c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := c.c.ReadMessage(); err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				t.Fatalf("connection still open: %v", err)
			}
			return
		}
	}
}

func TestServer_WrongTokenIsPlayer(t *testing.T) {
	url := newTestServer(t)
	c, w := dial(t, url, protocol.HelloMsg{UserID: "mallory", Auth: &protocol.HelloAuth{Token: "guess"}})
	if w.Role != protocol.RolePlayer {
		t.Fatalf("role=%s", w.Role)
	}
	if resp := c.call("achievements.export", nil); resp.Code != protocol.ErrNoPermission {
		t.Fatalf("export: %+v", resp)
	}
}

func TestServer_RejectsBadHello(t *testing.T) {
	url := newTestServer(t)
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if err := c.WriteJSON(map[string]string{"type": "REQ"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = c.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://table.example/"})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	if !check(req("https://table.example")) || !check(req("")) {
		t.Fatalf("expected allowed origins to pass")
	}
	if check(req("https://evil.example")) {
		t.Fatalf("expected foreign origin to be rejected")
	}
	if !originChecker(nil)(req("https://anything.example")) {
		t.Fatalf("empty allow list should accept all")
	}
}
