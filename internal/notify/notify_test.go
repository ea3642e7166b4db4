package notify

import (
	"strings"
	"testing"

	"achievements.party/internal/achievements"
	"achievements.party/internal/protocol"
	"achievements.party/internal/roster"
	"achievements.party/internal/settings"
)

func TestEnrich(t *testing.T) {
	if got := Enrich("This is a {b}bold{/b} statement."); got != "This is a <b>bold</b> statement." {
		t.Fatalf("enrich=%q", got)
	}
	if got := Enrich("<script>{i}x{/i}"); got != "&lt;script&gt;<i>x</i>" {
		t.Fatalf("enrich escapes=%q", got)
	}
}

func TestClean(t *testing.T) {
	if got := Clean("This is a <b>bold</b> statement."); got != "This is a &lt;b&gt;bold&lt;/b&gt; statement." {
		t.Fatalf("clean=%q", got)
	}
}

func TestFormat(t *testing.T) {
	got := Format("{a} and {b} and {c}", map[string]string{"a": "1", "b": "2"})
	if got != "1 and 2 and {c}" {
		t.Fatalf("format=%q", got)
	}
}

type delivery struct {
	t     Target
	frame any
}

type fakeSink struct {
	got []delivery
	// online are the users whose connections accept frames.
	online []string
}

func (s *fakeSink) Deliver(t Target, frame any) []string {
	s.got = append(s.got, delivery{t, frame})
	return s.online
}

func newTestBroadcaster(flags settings.Flags) (*Broadcaster, *fakeSink) {
	r := &roster.Roster{}
	r.UpsertUser(roster.User{ID: "gm", Name: "GM", Admin: true})
	r.UpsertUser(roster.User{ID: "u1", Name: "Alice", Character: "Actor.123"})
	r.UpsertSubject(roster.Subject{ID: "Actor.123", Name: "Grog"})
	sink := &fakeSink{}
	return NewBroadcaster(Messages{}, r, func() settings.Flags { return flags }, sink), sink
}

func testAchievement() achievements.Achievement {
	return achievements.Achievement{Definition: achievements.Definition{
		ID: "a1", Title: "First <Blood>", Description: "Kill {b}one{/b} enemy",
	}}
}

func TestBroadcaster_UnlockedToEveryone(t *testing.T) {
	b, sink := newTestBroadcaster(settings.Flags{DefaultImage: "d.webp", DefaultSound: "d.ogg"})
	b.Unlocked(testAchievement(), "Actor.123", false)

	if len(sink.got) != 1 {
		t.Fatalf("deliveries=%d", len(sink.got))
	}
	d := sink.got[0]
	if !d.t.Everyone() {
		t.Fatalf("target=%+v want everyone", d.t)
	}
	msg := d.frame.(protocol.NotifyMsg)
	if msg.Text != "Grog (Alice) has unlocked an achievement!" {
		t.Fatalf("text=%q", msg.Text)
	}
	if msg.Title != "First &lt;Blood&gt;" || msg.Description != "Kill <b>one</b> enemy" {
		t.Fatalf("title=%q description=%q", msg.Title, msg.Description)
	}
	if msg.Image != "d.webp" || msg.Sound != "d.ogg" || msg.UserID != "u1" || msg.Late {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestBroadcaster_LateOnlyToAwardedUser(t *testing.T) {
	b, sink := newTestBroadcaster(settings.Flags{ShowOnlyToAwardedUser: true})
	b.Unlocked(testAchievement(), "Actor.123", true)

	d := sink.got[0]
	if len(d.t.UserIDs) != 1 || d.t.UserIDs[0] != "u1" {
		t.Fatalf("target=%+v", d.t)
	}
	msg := d.frame.(protocol.NotifyMsg)
	if !msg.Late || !strings.Contains(msg.Text, "while away") {
		t.Fatalf("late msg=%+v", msg)
	}
}

func TestBroadcaster_PendingGoesToAdmins(t *testing.T) {
	b, sink := newTestBroadcaster(settings.Flags{})
	b.PendingAward(testAchievement(), "Actor.123")

	d := sink.got[0]
	if !d.t.AdminsOnly {
		t.Fatalf("target=%+v", d.t)
	}
	msg := d.frame.(protocol.PendingMsg)
	if !strings.Contains(msg.Text, "First &lt;Blood&gt;") || !strings.HasPrefix(msg.Text, "Grog (Alice)") {
		t.Fatalf("pending text=%q", msg.Text)
	}
}

func TestBroadcaster_UnlockedReportsOwnerDelivery(t *testing.T) {
	b, sink := newTestBroadcaster(settings.Flags{})
	sink.online = []string{"gm"}
	if b.Unlocked(testAchievement(), "Actor.123", true) {
		t.Fatalf("delivery to other users counted for the owner")
	}
	sink.online = []string{"gm", "u1"}
	if !b.Unlocked(testAchievement(), "Actor.123", true) {
		t.Fatalf("owner delivery not reported")
	}
}

func TestBroadcaster_UncontrolledSubjectIsSkipped(t *testing.T) {
	b, sink := newTestBroadcaster(settings.Flags{})
	if b.Unlocked(testAchievement(), "Actor.999", false) {
		t.Fatalf("uncontrolled subject reported delivered")
	}
	b.PendingAward(testAchievement(), "Actor.999")
	if len(sink.got) != 0 {
		t.Fatalf("deliveries=%+v", sink.got)
	}
}
