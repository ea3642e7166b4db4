// Package events is a small typed publish/subscribe bus for achievement
// state changes.
package events

import (
	"sync"
	"time"
)

// Event names as seen by external subscribers.
const (
	NameAwarded   = "awardAchievement"
	NameUnawarded = "unAwardAchievement"
)

type AchievementAwarded struct {
	AchievementID string
	SubjectID     string
	// Late is set when the award was made while the controller was offline
	// and is only now being delivered.
	Late bool
	At   time.Time
}

type AchievementUnawarded struct {
	AchievementID string
	SubjectID     string
	At            time.Time
}

// Topic fans a value out to every subscriber, in subscription order.
// Handlers run synchronously on the publisher's goroutine.
type Topic[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a func that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) (cancel func()) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscription[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s.id == id {
					t.subs = append(t.subs[:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := make([]subscription[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()
	for _, s := range subs {
		s.fn(v)
	}
}

func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

type Bus struct {
	Awarded   Topic[AchievementAwarded]
	Unawarded Topic[AchievementUnawarded]
}

func NewBus() *Bus { return &Bus{} }
