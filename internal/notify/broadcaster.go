// Package notify formats award notices and hands them to the transport.
package notify

import (
	"slices"
	"strings"

	"achievements.party/internal/achievements"
	"achievements.party/internal/protocol"
	"achievements.party/internal/roster"
	"achievements.party/internal/settings"
)

// Target selects recipients. The zero Target means every connected client.
type Target struct {
	UserIDs    []string
	AdminsOnly bool
}

func (t Target) Everyone() bool { return len(t.UserIDs) == 0 && !t.AdminsOnly }

// Sink delivers a frame to the connected clients matching t and returns the
// users whose connection accepted it.
type Sink interface {
	Deliver(t Target, frame any) []string
}

// People resolves subjects and their controllers.
type People interface {
	Subject(id string) (roster.Subject, bool)
	Controller(subjectID string) (roster.User, bool)
}

type Broadcaster struct {
	msgs   Messages
	people People
	flags  func() settings.Flags
	sink   Sink
}

func NewBroadcaster(msgs Messages, people People, flags func() settings.Flags, sink Sink) *Broadcaster {
	msgs.Normalize()
	return &Broadcaster{msgs: msgs, people: people, flags: flags, sink: sink}
}

// Unlocked implements achievements.Notifier.
func (b *Broadcaster) Unlocked(a achievements.Achievement, subjectID string, late bool) bool {
	msg, t, ok := b.BuildUnlocked(a, subjectID, late)
	if !ok {
		return false
	}
	return slices.Contains(b.sink.Deliver(t, msg), msg.UserID)
}

// PendingAward implements achievements.Notifier.
func (b *Broadcaster) PendingAward(a achievements.Achievement, subjectID string) {
	msg, ok := b.BuildPending(a, subjectID)
	if !ok {
		return
	}
	b.sink.Deliver(Target{AdminsOnly: true}, msg)
}

// BuildUnlocked formats the NOTIFY frame for an award. It reports false
// when no user controls the subject.
func (b *Broadcaster) BuildUnlocked(a achievements.Achievement, subjectID string, late bool) (protocol.NotifyMsg, Target, bool) {
	owner, ok := b.people.Controller(subjectID)
	if !ok {
		return protocol.NotifyMsg{}, Target{}, false
	}
	f := b.flags()
	whileAway := ""
	if late {
		whileAway = b.msgs.WhileAway
	}
	text := strings.TrimSpace(Format(b.msgs.HasUnlocked, map[string]string{
		"character_name": Clean(b.subjectName(subjectID)),
		"player_name":    Clean(owner.Name),
		"while_away":     whileAway,
	}))

	msg := protocol.NotifyMsg{
		Type:            protocol.TypeNotify,
		ProtocolVersion: protocol.Version,
		AchievementID:   a.ID,
		SubjectID:       subjectID,
		UserID:          owner.ID,
		Heading:         b.msgs.Heading,
		Text:            text,
		Title:           Clean(a.Title),
		Description:     Enrich(a.Description),
		Image:           firstNonEmpty(a.Image, f.DefaultImage),
		Sound:           firstNonEmpty(a.Sound, f.DefaultSound),
		Late:            late,
	}
	var t Target
	if f.ShowOnlyToAwardedUser {
		t.UserIDs = []string{owner.ID}
	}
	return msg, t, true
}

func (b *Broadcaster) BuildPending(a achievements.Achievement, subjectID string) (protocol.PendingMsg, bool) {
	owner, ok := b.people.Controller(subjectID)
	if !ok {
		return protocol.PendingMsg{}, false
	}
	text := Format(b.msgs.PendingAward, map[string]string{
		"character_name":    Clean(b.subjectName(subjectID)),
		"player_name":       Clean(owner.Name),
		"achievement_title": Clean(a.Title),
	})
	return protocol.PendingMsg{
		Type:            protocol.TypePending,
		ProtocolVersion: protocol.Version,
		AchievementID:   a.ID,
		SubjectID:       subjectID,
		Text:            text,
	}, true
}

func (b *Broadcaster) subjectName(id string) string {
	if s, ok := b.people.Subject(id); ok && s.Name != "" {
		return s.Name
	}
	return id
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
