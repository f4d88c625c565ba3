package gateway

import (
	"sync"
	"time"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
)

type pendingCleanup struct {
	epoch uint64
	timer core.Timer
}

// RoomScheduler arms at most one deferred cleanup per room. Every arm takes
// a fresh epoch; a timer only runs its action if the room's pending epoch is
// still the one it captured, so a cancel or re-arm that happens while the
// timer is already firing still wins.
type RoomScheduler struct {
	clock core.Clock

	mu      sync.Mutex
	epoch   uint64
	pending map[domain.ChannelID]pendingCleanup
	stopped bool
}

func NewRoomScheduler(clock core.Clock) *RoomScheduler {
	if clock == nil {
		clock = core.RealClock()
	}
	return &RoomScheduler{clock: clock, pending: make(map[domain.ChannelID]pendingCleanup)}
}

// Arm replaces any pending cleanup of room with one that runs fire after delay.
// After StopAll it does nothing.
func (s *RoomScheduler) Arm(room domain.ChannelID, delay time.Duration, fire func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.epoch++
	epoch := s.epoch
	if old, ok := s.pending[room]; ok && old.timer != nil {
		old.timer.Stop()
	}
	s.pending[room] = pendingCleanup{epoch: epoch}
	s.mu.Unlock()

	// The timer is created outside the lock: a fake clock may run f inline.
	timer := s.clock.AfterFunc(delay, func() {
		if s.claim(room, epoch) {
			fire()
		}
	})

	s.mu.Lock()
	if p, ok := s.pending[room]; ok && p.epoch == epoch {
		p.timer = timer
		s.pending[room] = p
	} else {
		timer.Stop()
	}
	s.mu.Unlock()
}

// Cancel reports whether a pending cleanup was removed.
func (s *RoomScheduler) Cancel(room domain.ChannelID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[room]
	if !ok {
		return false
	}
	delete(s.pending, room)
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}

func (s *RoomScheduler) Armed(room domain.ChannelID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[room]
	return ok
}

func (s *RoomScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// StopAll cancels every pending cleanup and refuses new ones.
func (s *RoomScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for room, p := range s.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(s.pending, room)
	}
}

func (s *RoomScheduler) claim(room domain.ChannelID, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[room]
	if !ok || p.epoch != epoch {
		return false
	}
	delete(s.pending, room)
	return true
}
