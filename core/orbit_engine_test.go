package core

import (
	"errors"
	"testing"
	"time"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/timectrl"
)

var engineStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

type orbitRecorderStub struct {
	calls int
	last  Vec3
}

func (r *orbitRecorderStub) ObserveOrbitUpdate(x, y, z float64) {
	r.calls++
	r.last = Vec3{X: x, Y: y, Z: z}
}

func newTestEngine(t *testing.T, params OrbitParameters, opts ...EngineOption) (*OrbitalKinematicsEngine, *timectrl.FakeEventScheduler) {
	t.Helper()
	sched := timectrl.NewFakeEventScheduler(engineStart)
	e, err := NewOrbitalKinematicsEngine(params, sched, opts...)
	if err != nil {
		t.Fatalf("NewOrbitalKinematicsEngine: %v", err)
	}
	return e, sched
}

func TestNewOrbitalKinematicsEngine_Validation(t *testing.T) {
	sched := timectrl.NewFakeEventScheduler(engineStart)

	bad := DefaultOrbitParameters()
	bad.Timestep = 0
	if _, err := NewOrbitalKinematicsEngine(bad, sched); !errors.Is(err, ErrInvalidOrbit) {
		t.Fatalf("zero timestep: err = %v, want ErrInvalidOrbit", err)
	}
	if _, err := NewOrbitalKinematicsEngine(DefaultOrbitParameters(), nil); !errors.Is(err, ErrInvalidOrbit) {
		t.Fatalf("nil scheduler: err = %v, want ErrInvalidOrbit", err)
	}
}

func TestEngineIdleUntilInitialized(t *testing.T) {
	e, sched := newTestEngine(t, DefaultOrbitParameters())

	if e.Started() {
		t.Fatalf("engine should not be started before Initialize")
	}
	if _, ok := e.Pending(); ok {
		t.Fatalf("engine should not schedule anything before Initialize")
	}
	if sched.Len() != 0 {
		t.Fatalf("scheduler has %d events, want 0", sched.Len())
	}
	if e.Position() != (Vec3{Z: DefaultOrbitRadiusMeters}) {
		t.Fatalf("initial position = %+v, want north pole", e.Position())
	}
}

func TestEngineInitializeComputesAndArms(t *testing.T) {
	e, sched := newTestEngine(t, DefaultOrbitParameters(), WithEngineID("sar-1"))
	e.Initialize(engineStart)

	if !e.Started() || !e.Epoch().Equal(engineStart) {
		t.Fatalf("epoch = %v started=%v, want %v", e.Epoch(), e.Started(), engineStart)
	}
	if e.Position() != (Vec3{Z: DefaultOrbitRadiusMeters}) {
		t.Fatalf("position at epoch = %+v", e.Position())
	}
	if sched.Len() != 1 {
		t.Fatalf("pending events = %d, want 1", sched.Len())
	}
	next, _ := sched.NextEventTime()
	if want := engineStart.Add(time.Second); !next.Equal(want) {
		t.Fatalf("next update at %v, want %v", next, want)
	}
}

func TestEngineUpdatesOnCadence(t *testing.T) {
	params := DefaultOrbitParameters()
	params.Timestep = 10 * time.Second
	e, sched := newTestEngine(t, params)

	var times []time.Duration
	e.Subscribe(func(c CourseChange) { times = append(times, c.Elapsed) })

	e.Initialize(engineStart)
	sched.Step(engineStart.Add(35 * time.Second))

	want := []time.Duration{0, 10 * time.Second, 20 * time.Second, 30 * time.Second}
	if len(times) != len(want) {
		t.Fatalf("updates at %v, want %v", times, want)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Fatalf("update %d at %v, want %v", i, times[i], want[i])
		}
	}

	wantPos, wantVel := SarOrbitState(params, 30)
	if e.Position() != wantPos || e.Velocity() != wantVel {
		t.Fatalf("state after 30s = %+v/%+v, want %+v/%+v", e.Position(), e.Velocity(), wantPos, wantVel)
	}
	if sched.Len() != 1 {
		t.Fatalf("pending events = %d, want exactly 1", sched.Len())
	}
}

func TestEngineRepeatedUpdateKeepsSingleTimer(t *testing.T) {
	e, sched := newTestEngine(t, DefaultOrbitParameters())
	e.Initialize(engineStart)
	first, _ := e.Pending()

	e.Update()
	e.Update()

	if sched.Len() != 1 {
		t.Fatalf("pending events = %d, want 1", sched.Len())
	}
	second, ok := e.Pending()
	if !ok || second == first {
		t.Fatalf("pending id = %q (ok=%v), want a fresh id", second, ok)
	}
	if sched.Scheduled != 3 {
		t.Fatalf("Schedule calls = %d, want 3", sched.Scheduled)
	}
}

func TestEngineFirstUpdateAnchorsEpoch(t *testing.T) {
	e, sched := newTestEngine(t, DefaultOrbitParameters())
	sched.AdvanceTo(engineStart.Add(time.Hour))

	e.Update()
	if !e.Epoch().Equal(engineStart.Add(time.Hour)) {
		t.Fatalf("epoch = %v, want the time of the first update", e.Epoch())
	}
	if e.Position() != (Vec3{Z: DefaultOrbitRadiusMeters}) {
		t.Fatalf("first update should evaluate elapsed=0, got %+v", e.Position())
	}
}

func TestEngineSetPositionIsOverwrittenByImmediateUpdate(t *testing.T) {
	e, sched := newTestEngine(t, DefaultOrbitParameters())
	e.Initialize(engineStart)
	sched.Step(engineStart.Add(5 * time.Second))

	manual := Vec3{X: 1, Y: 2, Z: 3}
	e.SetPosition(manual)
	if e.Position() != manual {
		t.Fatalf("position right after SetPosition = %+v, want %+v", e.Position(), manual)
	}
	if sched.Len() != 1 {
		t.Fatalf("SetPosition should replace the pending update, have %d events", sched.Len())
	}
	next, _ := sched.NextEventTime()
	if !next.Equal(sched.Now()) {
		t.Fatalf("SetPosition update scheduled at %v, want now (%v)", next, sched.Now())
	}

	sched.RunDue()
	want, _ := SarOrbitState(DefaultOrbitParameters(), 5)
	if e.Position() != want {
		t.Fatalf("position after scheduled update = %+v, want orbit value %+v", e.Position(), want)
	}
}

func TestEngineSetPositionBeforeStart(t *testing.T) {
	e, sched := newTestEngine(t, DefaultOrbitParameters())
	sched.AdvanceTo(engineStart.Add(time.Minute))

	e.SetPosition(Vec3{X: 42})
	if !e.Started() || !e.Epoch().Equal(engineStart.Add(time.Minute)) {
		t.Fatalf("SetPosition should anchor the epoch at now, got %v", e.Epoch())
	}
	sched.RunDue()
	if e.Position() != (Vec3{Z: DefaultOrbitRadiusMeters}) {
		t.Fatalf("position after update = %+v, want north pole", e.Position())
	}
}

func TestEngineObserversInOrderAndUnsubscribe(t *testing.T) {
	e, sched := newTestEngine(t, DefaultOrbitParameters())

	var order []string
	e.Subscribe(func(CourseChange) { order = append(order, "a") })
	unsubB := e.Subscribe(func(CourseChange) { order = append(order, "b") })
	e.Subscribe(func(CourseChange) { order = append(order, "c") })

	e.Initialize(engineStart)
	if got := join(order); got != "abc" {
		t.Fatalf("observer order = %q, want abc", got)
	}

	order = nil
	unsubB()
	sched.Step(engineStart.Add(time.Second))
	if got := join(order); got != "ac" {
		t.Fatalf("observer order after unsubscribe = %q, want ac", got)
	}
}

func TestEngineStopCancelsTimer(t *testing.T) {
	rec := &orbitRecorderStub{}
	e, sched := newTestEngine(t, DefaultOrbitParameters(), WithEngineMetrics(rec))

	calls := 0
	e.Subscribe(func(CourseChange) { calls++ })
	e.Initialize(engineStart)
	e.Stop()

	if sched.Len() != 0 {
		t.Fatalf("pending events after Stop = %d, want 0", sched.Len())
	}
	sched.Step(engineStart.Add(time.Minute))
	if calls != 1 {
		t.Fatalf("observer calls = %d, want 1", calls)
	}
	if rec.calls != 1 || rec.last != (Vec3{Z: DefaultOrbitRadiusMeters}) {
		t.Fatalf("recorder = %+v, want one call at the north pole", rec)
	}

	e.SetPosition(Vec3{})
	if sched.Len() != 0 {
		t.Fatalf("stopped engine must not re-arm, have %d events", sched.Len())
	}
}

func TestEngineWithStaticMotionModel(t *testing.T) {
	pos := Vec3{X: EarthRadiusMeters}
	e, sched := newTestEngine(t, DefaultOrbitParameters(), WithMotionModel(NewStaticMotionModel(pos)))
	e.Initialize(engineStart)
	sched.Step(engineStart.Add(10 * time.Second))

	if e.Position() != pos || e.Velocity() != (Vec3{}) {
		t.Fatalf("static engine state = %+v/%+v", e.Position(), e.Velocity())
	}
}

func join(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}
