package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/model"
)

// ISS sample TLE.
const (
	issTLE1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issTLE2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestStaticMotionModel_NoChange(t *testing.T) {
	m := NewStaticMotionModel(Vec3{X: 1, Y: 2, Z: 3})

	m.Advance(time.Hour)
	if m.Position() != (Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("static motion should not change position, got %+v", m.Position())
	}
	if m.Velocity() != (Vec3{}) {
		t.Fatalf("static motion should have zero velocity, got %+v", m.Velocity())
	}
}

func TestSarOrbitState_StartsOverNorthPole(t *testing.T) {
	p := DefaultOrbitParameters()
	pos, vel := SarOrbitState(p, 0)

	if pos != (Vec3{Z: DefaultOrbitRadiusMeters}) {
		t.Fatalf("position at t=0 = %+v, want (0, 0, %v)", pos, DefaultOrbitRadiusMeters)
	}
	wantSpeed := p.RadiusMeters * p.AngularRate()
	if !approxEqual(vel.X, wantSpeed, 1e-9) || vel.Y != 0 || vel.Z != 0 {
		t.Fatalf("velocity at t=0 = %+v, want (%v, 0, 0)", vel, wantSpeed)
	}
}

func TestSarOrbitState_RadiusAndTangentialVelocity(t *testing.T) {
	p := DefaultOrbitParameters()
	wantSpeed := p.RadiusMeters * p.AngularRate()

	for _, tSec := range []float64{0, 1, 100, 1481.1425, 2962.285, 5924.56, 5924.57, 10000, 12000, 1e6} {
		pos, vel := SarOrbitState(p, tSec)
		if !approxEqual(pos.Norm(), p.RadiusMeters, 1e-6) {
			t.Errorf("t=%v: |pos| = %v, want %v", tSec, pos.Norm(), p.RadiusMeters)
		}
		if !approxEqual(vel.Norm(), wantSpeed, 1e-6) {
			t.Errorf("t=%v: |vel| = %v, want %v", tSec, vel.Norm(), wantSpeed)
		}
		if dot := pos.Dot(vel); math.Abs(dot) > 1e-9*p.RadiusMeters*wantSpeed {
			t.Errorf("t=%v: pos·vel = %v, want ~0", tSec, dot)
		}
	}
}

func TestSarOrbitState_HalfOrbitOverSouthPole(t *testing.T) {
	p := DefaultOrbitParameters()
	pos, _ := SarOrbitState(p, p.PeriodSeconds/2)

	if !approxEqual(pos.Z, -p.RadiusMeters, 1e-6) {
		t.Fatalf("z at half orbit = %v, want %v", pos.Z, -p.RadiusMeters)
	}
	if !approxEqual(pos.X, 0, 1e-6) || !approxEqual(pos.Y, 0, 1e-6) {
		t.Fatalf("x,y at half orbit = %v,%v, want ~0", pos.X, pos.Y)
	}
}

func TestSarOrbitState_AzimuthStepsOncePerOrbit(t *testing.T) {
	p := DefaultOrbitParameters()
	quarter := p.PeriodSeconds / 4

	// First orbit: the plane is the x-z plane.
	pos, _ := SarOrbitState(p, quarter)
	if !approxEqual(pos.Y, 0, 1e-6) || !approxEqual(pos.X, p.RadiusMeters, 1e-6) {
		t.Fatalf("first orbit quarter point = %+v, want (R, 0, 0)", pos)
	}

	// Second orbit: the plane has rotated by 2π/175.
	pos, _ = SarOrbitState(p, p.PeriodSeconds+quarter)
	az := math.Atan2(pos.Y, pos.X)
	want := 2 * math.Pi / float64(p.AzimuthOrbitsPerCycle)
	if !approxEqual(az, want, 1e-9) {
		t.Fatalf("azimuth after one orbit = %v, want %v", az, want)
	}
}

func TestSarOrbitState_PrecessionCycleReturnsToStart(t *testing.T) {
	p := DefaultOrbitParameters()
	cycle := p.PrecessionCycle().Seconds()
	t0, _ := SarOrbitState(p, 0)
	tc, _ := SarOrbitState(p, cycle)

	if t0.DistanceTo(tc) > 1 {
		t.Fatalf("position after a full precession cycle = %+v, want %+v", tc, t0)
	}
}

func TestSarOrbitModel_AdvanceDependsOnlyOnElapsed(t *testing.T) {
	m, err := NewSarOrbitModel(DefaultOrbitParameters())
	if err != nil {
		t.Fatalf("NewSarOrbitModel: %v", err)
	}
	if m.Position() != (Vec3{Z: DefaultOrbitRadiusMeters}) {
		t.Fatalf("new model position = %+v, want north pole", m.Position())
	}

	m.Advance(1000 * time.Second)
	first := m.Position()
	m.Advance(3000 * time.Second)
	m.Advance(1000 * time.Second)
	if m.Position() != first {
		t.Fatalf("re-advancing to 1000s gave %+v, want %+v", m.Position(), first)
	}
}

func TestNewSarOrbitModel_RejectsBadParams(t *testing.T) {
	bad := []OrbitParameters{
		{PeriodSeconds: 0, RadiusMeters: 1, AzimuthOrbitsPerCycle: 1, Timestep: time.Second},
		{PeriodSeconds: -1, RadiusMeters: 1, AzimuthOrbitsPerCycle: 1, Timestep: time.Second},
		{PeriodSeconds: math.NaN(), RadiusMeters: 1, AzimuthOrbitsPerCycle: 1, Timestep: time.Second},
		{PeriodSeconds: 1, RadiusMeters: math.Inf(1), AzimuthOrbitsPerCycle: 1, Timestep: time.Second},
		{PeriodSeconds: 1, RadiusMeters: 1, AzimuthOrbitsPerCycle: 0, Timestep: time.Second},
		{PeriodSeconds: 1, RadiusMeters: 1, AzimuthOrbitsPerCycle: 1, Timestep: 0},
	}
	for i, p := range bad {
		if _, err := NewSarOrbitModel(p); !errors.Is(err, ErrInvalidOrbit) {
			t.Errorf("case %d: err = %v, want ErrInvalidOrbit", i, err)
		}
	}
}

// Exact SGP4 values belong to go-satellite; only check the model moves and
// stays at a LEO radius.
func TestOrbitalSGP4MotionModel_ChangesOverTime(t *testing.T) {
	epoch := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	m, err := NewOrbitalModelFromTLE(issTLE1, issTLE2, epoch)
	if err != nil {
		t.Fatalf("NewOrbitalModelFromTLE: %v", err)
	}

	first := m.Position()
	m.Advance(5 * time.Minute)
	second := m.Position()

	if first == second {
		t.Fatalf("expected orbital position to change over time, got %+v at both times", first)
	}
	for _, p := range []Vec3{first, second} {
		r := p.Norm()
		if r < EarthRadiusMeters || r > EarthRadiusMeters+1000000 {
			t.Fatalf("ISS radius %v m outside LEO range", r)
		}
	}
}

func TestNewOrbitalModelFromTLE_RequiresBothLines(t *testing.T) {
	if _, err := NewOrbitalModelFromTLE(issTLE1, "", time.Time{}); !errors.Is(err, ErrInvalidOrbit) {
		t.Fatalf("err = %v, want ErrInvalidOrbit", err)
	}
}

func TestNewMotionModel_SelectsVariant(t *testing.T) {
	params := DefaultOrbitParameters()
	epoch := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)

	sar, err := NewMotionModel(&model.PlatformDefinition{ID: "sar", MotionSource: model.MotionSourceSarOrbit}, params, epoch)
	if err != nil {
		t.Fatalf("sar: %v", err)
	}
	if _, ok := sar.(*SarOrbitModel); !ok {
		t.Fatalf("sar motion = %T, want *SarOrbitModel", sar)
	}

	static, err := NewMotionModel(&model.PlatformDefinition{
		ID:           "gs",
		MotionSource: model.MotionSourceStatic,
		Coordinates:  model.Motion{Z: EarthRadiusMeters},
	}, params, epoch)
	if err != nil {
		t.Fatalf("static: %v", err)
	}
	if static.Position() != (Vec3{Z: EarthRadiusMeters}) {
		t.Fatalf("static position = %+v", static.Position())
	}

	sgp4, err := NewMotionModel(&model.PlatformDefinition{
		ID:           "iss",
		MotionSource: model.MotionSourceSpacetrack,
		TLE1:         issTLE1,
		TLE2:         issTLE2,
	}, params, epoch)
	if err != nil {
		t.Fatalf("spacetrack: %v", err)
	}
	if _, ok := sgp4.(*OrbitalSGP4MotionModel); !ok {
		t.Fatalf("spacetrack motion = %T, want *OrbitalSGP4MotionModel", sgp4)
	}

	if _, err := NewMotionModel(nil, params, epoch); err == nil {
		t.Fatalf("expected error for nil platform")
	}
}
