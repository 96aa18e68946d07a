package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/model"
)

// MotionModel is the capability every orbit variant provides: it is advanced
// to an elapsed time since its epoch and then queried for position/velocity.
type MotionModel interface {
	// Advance moves the model to epoch+elapsed.
	Advance(elapsed time.Duration)
	// Position returns the position after the last Advance (metres).
	Position() Vec3
	// Velocity returns the velocity after the last Advance (metres/second).
	Velocity() Vec3
}

// StaticMotionModel keeps a fixed position and zero velocity.
type StaticMotionModel struct {
	pos Vec3
}

// NewStaticMotionModel returns a model pinned at pos.
func NewStaticMotionModel(pos Vec3) *StaticMotionModel {
	return &StaticMotionModel{pos: pos}
}

// Advance for static motion does nothing.
func (m *StaticMotionModel) Advance(time.Duration) {}

func (m *StaticMotionModel) Position() Vec3 { return m.pos }
func (m *StaticMotionModel) Velocity() Vec3 { return Vec3{} }

// SarOrbitModel is a circular polar orbit whose plane rotates in azimuth by
// 2π/AzimuthOrbitsPerCycle after every completed orbit.
type SarOrbitModel struct {
	params   OrbitParameters
	position Vec3
	velocity Vec3
}

// NewSarOrbitModel validates params and returns a model positioned at the
// t=0 point of the orbit (over the north pole).
func NewSarOrbitModel(params OrbitParameters) (*SarOrbitModel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	m := &SarOrbitModel{params: params}
	m.Advance(0)
	return m, nil
}

// Advance recomputes position and velocity for the given elapsed time.
func (m *SarOrbitModel) Advance(elapsed time.Duration) {
	m.position, m.velocity = SarOrbitState(m.params, elapsed.Seconds())
}

func (m *SarOrbitModel) Position() Vec3 { return m.position }
func (m *SarOrbitModel) Velocity() Vec3 { return m.velocity }

// SarOrbitState evaluates the precessing circular orbit t seconds after the
// epoch. Velocity is the derivative with the azimuth held fixed; precession
// is slow compared with the orbital rate.
func SarOrbitState(p OrbitParameters, t float64) (pos, vel Vec3) {
	period := p.PeriodSeconds
	r := p.RadiusMeters

	angleInc := math.Mod(t, period) / period * 2 * math.Pi
	angleAz := math.Floor(t/period) * 2 * math.Pi / float64(p.AzimuthOrbitsPerCycle)

	sinInc, cosInc := math.Sincos(angleInc)
	sinAz, cosAz := math.Sincos(angleAz)

	pos = Vec3{
		X: r * cosAz * sinInc,
		Y: r * sinAz * sinInc,
		Z: r * cosInc,
	}

	coef := p.AngularRate()
	vel = Vec3{
		X: r * cosAz * cosInc * coef,
		Y: r * sinAz * cosInc * coef,
		Z: -r * sinInc * coef,
	}
	return pos, vel
}

// OrbitalSGP4MotionModel uses a TLE and SGP4 to follow a real satellite.
// Positions are ECEF metres; velocity is rotated into ECEF without the
// Earth-rate correction.
type OrbitalSGP4MotionModel struct {
	sat   satellite.Satellite
	epoch time.Time

	position Vec3
	velocity Vec3
}

// NewOrbitalModelFromTLE constructs an SGP4 model whose elapsed time is
// measured from epoch.
func NewOrbitalModelFromTLE(line1, line2 string, epoch time.Time) (*OrbitalSGP4MotionModel, error) {
	if err := ValidateTLE(line1, line2); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init failed: code=%d %s", ErrInvalidOrbit, sat.Error, sat.ErrorStr)
	}
	m := &OrbitalSGP4MotionModel{sat: sat, epoch: epoch.UTC()}
	m.Advance(0)
	return m, nil
}

// Advance propagates the satellite to epoch+elapsed.
// go-satellite works in kilometres; we store metres.
func (m *OrbitalSGP4MotionModel) Advance(elapsed time.Duration) {
	simTime := m.epoch.Add(elapsed)
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, velECI := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)
	velECEF := satellite.ECIToECEF(velECI, gmst)

	const kmToM = 1000.0
	m.position = Vec3{X: posECEF.X * kmToM, Y: posECEF.Y * kmToM, Z: posECEF.Z * kmToM}
	m.velocity = Vec3{X: velECEF.X * kmToM, Y: velECEF.Y * kmToM, Z: velECEF.Z * kmToM}
}

func (m *OrbitalSGP4MotionModel) Position() Vec3 { return m.position }
func (m *OrbitalSGP4MotionModel) Velocity() Vec3 { return m.velocity }

// NewMotionModel chooses a MotionModel for the platform. Static platforms
// stay at their scenario coordinates; the epoch is only used by SGP4.
func NewMotionModel(p *model.PlatformDefinition, params OrbitParameters, epoch time.Time) (MotionModel, error) {
	if p == nil {
		return nil, fmt.Errorf("nil platform")
	}
	switch p.MotionSource {
	case model.MotionSourceStatic:
		return NewStaticMotionModel(Vec3{X: p.Coordinates.X, Y: p.Coordinates.Y, Z: p.Coordinates.Z}), nil
	case model.MotionSourceSarOrbit:
		return NewSarOrbitModel(params)
	case model.MotionSourceSpacetrack:
		return NewOrbitalModelFromTLE(p.TLE1, p.TLE2, epoch)
	default:
		return nil, fmt.Errorf("platform %q: unsupported motion source %s", p.ID, p.MotionSource)
	}
}
