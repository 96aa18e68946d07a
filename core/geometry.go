package core

import "math"

// EarthRadiusMeters is the mean Earth radius used for the spherical
// line-of-sight and elevation helpers (metres).
const EarthRadiusMeters = 6371000.0

// MaxLinkRangeMeters is the longest ground-to-satellite separation that
// still counts as a usable line of sight for the reference orbit. Anything
// further away is reported as an infinite distance.
const MaxLinkRangeMeters = 9512610.0

// Vec3 is an ECEF-style vector in metres (or metres/second for velocities).
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := other.X - v.X
	dy := other.Y - v.Y
	dz := other.Z - v.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// IsFinite reports whether all three components are finite numbers.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CalculateDistance returns the Euclidean distance between a and b in
// metres, or +Inf when the separation is beyond MaxLinkRangeMeters.
//
// Inputs must be finite; NaN or infinite components propagate into the
// result unchanged.
func CalculateDistance(a, b Vec3) float64 {
	d := a.DistanceTo(b)
	if d > MaxLinkRangeMeters {
		return math.Inf(1)
	}
	return d
}

// HasLineOfSight checks whether the straight segment between p1 and p2
// clears the Earth sphere. Positions are ECEF in metres.
func HasLineOfSight(p1, p2 Vec3) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		// Same point: visible only if it sits above the surface.
		return p1.Dot(p1) > EarthRadiusMeters*EarthRadiusMeters
	}

	// Closest point on the segment to the Earth's centre.
	t := -p1.Dot(v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Vec3{
		X: p1.X + v.X*t,
		Y: p1.Y + v.Y*t,
		Z: p1.Z + v.Z*t,
	}

	// A station sitting exactly on the surface touches the sphere at its own
	// endpoint, so allow equality.
	return closest.Dot(closest) >= EarthRadiusMeters*EarthRadiusMeters*(1-1e-12)
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}

	r := observer.Norm()
	if r == 0 {
		return 90
	}
	zenith := observer.Scale(1 / r)

	cosGamma := v.Dot(zenith) / vNorm
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	gammaDeg := math.Acos(cosGamma) * 180.0 / math.Pi

	return 90.0 - gammaDeg
}
