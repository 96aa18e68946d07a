package timectrl

import (
	"context"
	"slices"
	"sync"
	"time"
)

// SimClock is read access to simulation time. Schedulers depend on this
// rather than on a concrete controller.
type SimClock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime waits one wall-clock Tick per simulated Tick.
	RealTime Mode = iota
	// Accelerated steps by Tick without waiting.
	Accelerated
)

func (m Mode) String() string {
	if m == RealTime {
		return "realtime"
	}
	return "accelerated"
}

// TimeController owns simulation time and notifies listeners after every
// Tick taken by Start. It implements SimClock.
type TimeController struct {
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	mu        sync.RWMutex
	now       time.Time
	listeners []func(time.Time)
}

func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime: start,
		Tick:      tick,
		Mode:      mode,
		now:       start,
	}
}

func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.now
}

// Elapsed is the simulated time since StartTime.
func (tc *TimeController) Elapsed() time.Duration {
	return tc.Now().Sub(tc.StartTime)
}

// AdvanceTo jumps the clock to t without notifying listeners. Earlier times
// are ignored; the result reports whether the clock moved.
func (tc *TimeController) AdvanceTo(t time.Time) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if t.Before(tc.now) {
		return false
	}
	tc.now = t
	return true
}

// AddListener registers fn to run after each Tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Start steps the clock from its current time in a new goroutine until
// duration has been covered (forever when duration <= 0) or ctx is done.
// The returned channel closes when stepping stops.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		tc.run(ctx, duration)
	}()
	return done
}

func (tc *TimeController) run(ctx context.Context, duration time.Duration) {
	if tc.Tick <= 0 {
		return
	}
	var wall <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		wall = ticker.C
	}
	for covered := time.Duration(0); duration <= 0 || covered < duration; covered += tc.Tick {
		if !await(ctx, wall) {
			return
		}
		tc.step()
	}
}

func await(ctx context.Context, wall <-chan time.Time) bool {
	if wall == nil {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-wall:
		return true
	}
}

// step advances one Tick and calls listeners outside the lock.
func (tc *TimeController) step() {
	tc.mu.Lock()
	tc.now = tc.now.Add(tc.Tick)
	now := tc.now
	listeners := slices.Clone(tc.listeners)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
}
