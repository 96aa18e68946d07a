package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerAdvanceTo(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	if !tc.AdvanceTo(newNow) {
		t.Fatalf("AdvanceTo(%v) reported no movement", newNow)
	}
	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}

	if tc.AdvanceTo(start) {
		t.Fatalf("AdvanceTo into the past should be ignored")
	}
	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() after backwards AdvanceTo = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var ticks int
	tc.AddListener(func(time.Time) { ticks++ })

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if ticks != 3 {
		t.Fatalf("listener ticks = %d, want 3", ticks)
	}
}

func TestTimeControllerStartStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Hour, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after cancel")
	}
	if got := tc.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}
}

func TestTimeControllerListenerAddedDuringTick(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, Accelerated)

	var late []time.Time
	added := false
	tc.AddListener(func(now time.Time) {
		if !added {
			added = true
			tc.AddListener(func(now time.Time) { late = append(late, now) })
		}
	})

	<-tc.Start(context.Background(), 3*time.Second)

	if len(late) != 2 || !late[0].Equal(start.Add(2*time.Second)) {
		t.Fatalf("late listener saw %v, want ticks at 2s and 3s", late)
	}
}
