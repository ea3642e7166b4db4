package events

import "testing"

func TestTopic_PublishInOrderAndCancel(t *testing.T) {
	bus := NewBus()
	var got []string
	cancelA := bus.Awarded.Subscribe(func(e AchievementAwarded) { got = append(got, "a:"+e.AchievementID) })
	bus.Awarded.Subscribe(func(e AchievementAwarded) { got = append(got, "b:"+e.SubjectID) })

	bus.Awarded.Publish(AchievementAwarded{AchievementID: "a1", SubjectID: "Actor.1"})
	if len(got) != 2 || got[0] != "a:a1" || got[1] != "b:Actor.1" {
		t.Fatalf("unexpected delivery order: %v", got)
	}

	cancelA()
	cancelA() // second cancel is a no-op
	if n := bus.Awarded.Len(); n != 1 {
		t.Fatalf("subscribers=%d want 1", n)
	}
	got = got[:0]
	bus.Awarded.Publish(AchievementAwarded{AchievementID: "a2", SubjectID: "Actor.2"})
	if len(got) != 1 || got[0] != "b:Actor.2" {
		t.Fatalf("unexpected delivery after cancel: %v", got)
	}
}

func TestTopic_TopicsAreIndependent(t *testing.T) {
	bus := NewBus()
	awarded, unawarded := 0, 0
	bus.Awarded.Subscribe(func(AchievementAwarded) { awarded++ })
	bus.Unawarded.Subscribe(func(AchievementUnawarded) { unawarded++ })

	bus.Unawarded.Publish(AchievementUnawarded{AchievementID: "a1", SubjectID: "Actor.1"})
	if awarded != 0 || unawarded != 1 {
		t.Fatalf("awarded=%d unawarded=%d", awarded, unawarded)
	}
}
