package session

import "sync/atomic"

type Metrics struct {
	Requests  atomic.Uint64
	Mutations atomic.Uint64
	Awards    atomic.Uint64
	Unawards  atomic.Uint64
	Replayed  atomic.Uint64
	Dropped   atomic.Uint64
}

type MetricsSnapshot struct {
	WorldID      string
	Revision     uint64
	Achievements int
	Locked       int
	Pending      int
	Clients      int
	Requests     uint64
	Mutations    uint64
	Awards       uint64
	Unawards     uint64
	Replayed     uint64
	Dropped      uint64
}

func (s *Session) Metrics() MetricsSnapshot {
	v := s.Snapshot()
	pending := 0
	for _, ids := range v.Pending {
		pending += len(ids)
	}
	return MetricsSnapshot{
		WorldID:      v.WorldID,
		Revision:     v.Revision,
		Achievements: len(v.Achievements),
		Locked:       len(v.Locked),
		Pending:      pending,
		Clients:      v.Clients,
		Requests:     s.metrics.Requests.Load(),
		Mutations:    s.metrics.Mutations.Load(),
		Awards:       s.metrics.Awards.Load(),
		Unawards:     s.metrics.Unawards.Load(),
		Replayed:     s.metrics.Replayed.Load(),
		Dropped:      s.metrics.Dropped.Load(),
	}
}
