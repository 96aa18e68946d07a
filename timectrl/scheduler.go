package timectrl

import (
	"sync"
	"time"
)

// EventScheduler runs callbacks at simulation times read from a SimClock.
// The orbit engine keeps exactly one outstanding event here and re-arms it
// from inside its own callback.
//
// A driver loop jumps the clock to NextEventTime() (or advances it by a tick)
// and calls RunDue() after every advance.
type EventScheduler interface {
	// Schedule registers f to run at simulation time at and returns an
	// opaque handle for Cancel.
	Schedule(at time.Time, f func()) (id string)

	// Cancel drops a pending event. Unknown or already-run IDs are ignored.
	Cancel(id string)

	// Now is the current simulation time.
	Now() time.Time

	// RunDue runs every pending event due at or before Now(), including
	// events that callbacks schedule for the current instant. An event
	// never runs twice.
	RunDue()

	// NextEventTime reports the time of the earliest pending event.
	NextEventTime() (time.Time, bool)

	// Len is the number of pending events.
	Len() int
}

type eventScheduler struct {
	clock SimClock

	mu    sync.Mutex
	queue *eventQueue
}

// NewEventScheduler returns a scheduler that reads time from clock. Events
// for the same instant run in the order they were scheduled.
func NewEventScheduler(clock SimClock) EventScheduler {
	return &eventScheduler{
		clock: clock,
		queue: newEventQueue("ev"),
	}
}

func (s *eventScheduler) Schedule(at time.Time, f func()) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.push(at, f)
}

func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	s.queue.remove(id)
	s.mu.Unlock()
}

func (s *eventScheduler) Now() time.Time { return s.clock.Now() }

func (s *eventScheduler) NextEventTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.next()
}

func (s *eventScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

func (s *eventScheduler) RunDue() {
	for {
		s.mu.Lock()
		ev := s.queue.popDue(s.clock.Now())
		s.mu.Unlock()
		if ev == nil {
			return
		}
		// Unlocked so the callback can schedule or cancel.
		if ev.fn != nil {
			ev.fn()
		}
	}
}
