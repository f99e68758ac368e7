package device

import (
	"sync"
	"time"
)

// tickScheduler arms one timer per endpoint. A fired timer posts the tick to
// the device loop; the tick only runs if no later Schedule or Cancel for the
// endpoint happened in between, so a stale tick already queued on the loop
// is dropped.
type tickScheduler struct {
	post func(func())
	tick func(endpoint uint8)

	mu     sync.Mutex
	timers map[uint8]*time.Timer
	gen    map[uint8]uint64
	closed bool
}

func newTickScheduler(post func(func()), tick func(endpoint uint8)) *tickScheduler {
	return &tickScheduler{
		post:   post,
		tick:   tick,
		timers: make(map[uint8]*time.Timer),
		gen:    make(map[uint8]uint64),
	}
}

// ScheduleTick replaces any pending tick for the endpoint.
func (s *tickScheduler) ScheduleTick(endpoint uint8, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStopped
	}
	if t, ok := s.timers[endpoint]; ok {
		t.Stop()
	}
	s.gen[endpoint]++
	gen := s.gen[endpoint]
	s.timers[endpoint] = time.AfterFunc(delay, func() {
		s.post(func() { s.fire(endpoint, gen) })
	})
	return nil
}

// CancelTick drops the pending tick for the endpoint, if any.
func (s *tickScheduler) CancelTick(endpoint uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[endpoint]; ok {
		t.Stop()
		delete(s.timers, endpoint)
	}
	s.gen[endpoint]++
}

// fire runs on the device loop.
func (s *tickScheduler) fire(endpoint uint8, gen uint64) {
	s.mu.Lock()
	current := !s.closed && s.gen[endpoint] == gen
	if current {
		delete(s.timers, endpoint)
	}
	s.mu.Unlock()
	if current {
		s.tick(endpoint)
	}
}

// pending reports whether a tick is armed for the endpoint.
func (s *tickScheduler) pending(endpoint uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[endpoint]
	return ok
}

// close stops every timer and rejects further scheduling.
func (s *tickScheduler) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ep, t := range s.timers {
		t.Stop()
		delete(s.timers, ep)
	}
}
