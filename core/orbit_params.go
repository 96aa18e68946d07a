package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidOrbit is returned when orbit parameters cannot describe a
// circular orbit (non-positive or non-finite period, radius, precession
// cycle or timestep).
var ErrInvalidOrbit = errors.New("invalid orbit parameters")

// Reference orbit of the SAR satellite.
const (
	DefaultOrbitalPeriodSeconds  = 5924.57
	DefaultOrbitRadiusMeters     = 7064000.0
	DefaultAzimuthOrbitsPerCycle = 175
	DefaultUpdateTimestep        = time.Second
)

// OrbitParameters are fixed when an orbit model is constructed.
type OrbitParameters struct {
	// PeriodSeconds is the time for one full revolution.
	PeriodSeconds float64
	// RadiusMeters is the radius of the circular orbit.
	RadiusMeters float64
	// AzimuthOrbitsPerCycle is the number of orbits after which the
	// orbital plane has rotated once around the polar axis.
	AzimuthOrbitsPerCycle int
	// Timestep is the cadence of position re-evaluation.
	Timestep time.Duration
}

// DefaultOrbitParameters returns the reference SAR orbit with a 1s timestep.
func DefaultOrbitParameters() OrbitParameters {
	return OrbitParameters{
		PeriodSeconds:         DefaultOrbitalPeriodSeconds,
		RadiusMeters:          DefaultOrbitRadiusMeters,
		AzimuthOrbitsPerCycle: DefaultAzimuthOrbitsPerCycle,
		Timestep:              DefaultUpdateTimestep,
	}
}

// Validate reports whether the parameters describe a usable orbit.
func (p OrbitParameters) Validate() error {
	if !(p.PeriodSeconds > 0) || math.IsInf(p.PeriodSeconds, 0) {
		return fmt.Errorf("%w: period must be positive and finite, got %v", ErrInvalidOrbit, p.PeriodSeconds)
	}
	if !(p.RadiusMeters > 0) || math.IsInf(p.RadiusMeters, 0) {
		return fmt.Errorf("%w: radius must be positive and finite, got %v", ErrInvalidOrbit, p.RadiusMeters)
	}
	if p.AzimuthOrbitsPerCycle <= 0 {
		return fmt.Errorf("%w: azimuth orbits per cycle must be positive, got %d", ErrInvalidOrbit, p.AzimuthOrbitsPerCycle)
	}
	if p.Timestep <= 0 {
		return fmt.Errorf("%w: timestep must be positive, got %s", ErrInvalidOrbit, p.Timestep)
	}
	return nil
}

// AngularRate returns the orbital angular rate in radians/second.
func (p OrbitParameters) AngularRate() float64 {
	return 2 * math.Pi / p.PeriodSeconds
}

// PrecessionCycle returns the time for the orbital plane to complete one
// full azimuth rotation.
func (p OrbitParameters) PrecessionCycle() time.Duration {
	return time.Duration(p.PeriodSeconds * float64(p.AzimuthOrbitsPerCycle) * float64(time.Second))
}
