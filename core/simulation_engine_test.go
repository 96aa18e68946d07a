package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/internal/observability"
	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/model"
)

func TestNewSimulationEngine_RejectsBadScenario(t *testing.T) {
	if _, err := NewSimulationEngine(nil); !errors.Is(err, ErrInvalidScenario) {
		t.Fatalf("nil scenario: err = %v", err)
	}
	sc := DefaultScenario()
	sc.GroundStations = nil
	if _, err := NewSimulationEngine(sc); !errors.Is(err, ErrInvalidScenario) {
		t.Fatalf("no stations: err = %v", err)
	}
}

func TestSimulationEngine_DefaultScenarioRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewLinkCollector(reg)
	if err != nil {
		t.Fatalf("NewLinkCollector: %v", err)
	}

	sc := DefaultScenario()
	se, err := NewSimulationEngine(sc, WithSimulationMetrics(collector))
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	var elapsed []time.Duration
	se.RegisterTickListener(func(c CourseChange) {
		elapsed = append(elapsed, c.Elapsed)
		// Link delays are written before tick listeners run.
		last := se.Links.Last()
		if want := CalculateDistance(sc.GroundStations[0].Position, c.Position); !sameDistance(last[0].DistanceMeters, want) {
			t.Errorf("tick at %s saw stale link state: %v vs %v", c.Elapsed, last[0].DistanceMeters, want)
		}
	})

	if err := se.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Updates every quarter orbit up to 12000s: 8 after the initial one.
	if len(elapsed) != 8 {
		t.Fatalf("tick listener calls = %d, want 8: %v", len(elapsed), elapsed)
	}
	for i, e := range elapsed {
		if want := time.Duration(i+1) * sc.Orbit.Timestep; e != want {
			t.Fatalf("tick %d at %s, want %s", i, e, want)
		}
	}
	if se.Elapsed() != 12000*time.Second {
		t.Fatalf("clock stopped at %s, want 12000s", se.Elapsed())
	}
	if se.Scheduler.Len() != 1 {
		t.Fatalf("pending events = %d, want the next orbit update", se.Scheduler.Len())
	}

	// Two full orbits in: back over the north pole.
	north, south := se.Channels[0], se.Channels[1]
	if north.Status() != LinkStatusUp || south.Status() != LinkStatusDown {
		t.Fatalf("final status north=%s south=%s, want up/down", north.Status(), south.Status())
	}
	want := secondsToDuration(693000 * 1000 / SpeedOfLight)
	if diff := north.Delay() - want; diff < -time.Microsecond || diff > time.Microsecond {
		t.Fatalf("north delay = %s, want about %s", north.Delay(), want)
	}

	if got := testutil.ToFloat64(collector.OrbitUpdates); got != 9 {
		t.Fatalf("orbit_updates_total = %v, want 9", got)
	}
	if got := testutil.ToFloat64(collector.LinkUp.WithLabelValues("gs-north")); got != 1 {
		t.Fatalf("link_up{gs-north} = %v, want 1", got)
	}

	se.Stop()
	if se.Scheduler.Len() != 0 {
		t.Fatalf("Stop should cancel the pending update")
	}
}

func TestSimulationEngine_RunStopsOnCancelledContext(t *testing.T) {
	se, err := NewSimulationEngine(DefaultScenario())
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := se.Run(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if !se.Orbit.Started() || se.Channels[0].Updates() != 1 {
		t.Fatalf("Run should still start the simulation and set initial delays")
	}
	if se.Elapsed() != 0 {
		t.Fatalf("clock advanced to %s despite cancellation", se.Elapsed())
	}
}

func TestSimulationEngine_RunIsResumable(t *testing.T) {
	sc := DefaultScenario()
	sc.Orbit.Timestep = time.Minute
	se, err := NewSimulationEngine(sc)
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	ticks := 0
	se.RegisterTickListener(func(CourseChange) { ticks++ })

	if err := se.Run(context.Background(), 5*time.Minute); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := se.Run(context.Background(), 10*time.Minute); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if ticks != 10 {
		t.Fatalf("ticks = %d, want 10", ticks)
	}
}

func TestSimulationEngine_SpacetrackSatellite(t *testing.T) {
	sc := DefaultScenario()
	sc.Satellite = model.PlatformDefinition{
		ID:           "iss",
		MotionSource: model.MotionSourceSpacetrack,
		TLE1:         issTLE1,
		TLE2:         issTLE2,
	}
	sc.Orbit.Timestep = 10 * time.Second
	se, err := NewSimulationEngine(sc, WithStartTime(time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	se.Start()
	first := se.Orbit.Position()
	if err := se.Run(context.Background(), time.Minute); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if se.Orbit.Position() == first {
		t.Fatalf("SGP4 satellite did not move")
	}
	if se.Orbit.ID() != "iss" {
		t.Fatalf("engine id = %q", se.Orbit.ID())
	}
}

func TestSimulationEngine_RealTime(t *testing.T) {
	sc := DefaultScenario()
	sc.Orbit.Timestep = 10 * time.Millisecond
	se, err := NewSimulationEngine(sc, WithRealTime())
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	ticks := 0
	se.RegisterTickListener(func(CourseChange) { ticks++ })

	if err := se.Run(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ticks != 5 {
		t.Fatalf("ticks = %d, want 5", ticks)
	}
	if se.Elapsed() != 50*time.Millisecond {
		t.Fatalf("clock at %s, want 50ms", se.Elapsed())
	}
}

func sameDistance(a, b float64) bool {
	if math.IsInf(a, 1) || math.IsInf(b, 1) {
		return math.IsInf(a, 1) && math.IsInf(b, 1)
	}
	return math.Abs(a-b) < 1e-6
}
