package timectrl

import (
	"sync"
	"time"
)

// FakeEventScheduler is an EventScheduler with its own manual clock. Tests
// move time with AdvanceTo or Step and observe exactly which events ran.
type FakeEventScheduler struct {
	mu    sync.Mutex
	now   time.Time
	queue *eventQueue

	// Scheduled counts every Schedule call, cancelled or not.
	Scheduled int
}

func NewFakeEventScheduler(start time.Time) *FakeEventScheduler {
	return &FakeEventScheduler{now: start, queue: newEventQueue("fake-ev")}
}

func (s *FakeEventScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *FakeEventScheduler) Schedule(at time.Time, f func()) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scheduled++
	return s.queue.push(at, f)
}

func (s *FakeEventScheduler) Cancel(id string) {
	s.mu.Lock()
	s.queue.remove(id)
	s.mu.Unlock()
}

func (s *FakeEventScheduler) NextEventTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.next()
}

func (s *FakeEventScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// PendingIDs lists pending handles in run order.
func (s *FakeEventScheduler) PendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.ids()
}

func (s *FakeEventScheduler) RunDue() {
	for {
		s.mu.Lock()
		ev := s.queue.popDue(s.now)
		s.mu.Unlock()
		if ev == nil {
			return
		}
		if ev.fn != nil {
			ev.fn()
		}
	}
}

// AdvanceTo moves the clock to t and runs everything due. Earlier times are
// ignored.
func (s *FakeEventScheduler) AdvanceTo(t time.Time) {
	s.mu.Lock()
	if t.After(s.now) {
		s.now = t
	}
	s.mu.Unlock()
	s.RunDue()
}

// Step visits each pending event time up to until, so callbacks observe
// the clock at their own scheduled instant, then parks the clock at until.
func (s *FakeEventScheduler) Step(until time.Time) {
	for {
		next, ok := s.NextEventTime()
		if !ok || next.After(until) {
			break
		}
		s.AdvanceTo(next)
	}
	s.AdvanceTo(until)
}
