package model

import (
	"fmt"
	"strings"
)

// MotionSource indicates how a platform's motion is determined.
type MotionSource int

const (
	MotionSourceStatic     MotionSource = iota // fixed position (ground stations)
	MotionSourceSarOrbit                       // closed-form precessing polar orbit
	MotionSourceSpacetrack                     // TLE-based SGP4 propagation
)

// PlatformTypeSatellite is the Type of the scenario's satellite platform.
// Ground stations are core.GroundStation values, not platforms.
const PlatformTypeSatellite = "SATELLITE"

func (m MotionSource) String() string {
	switch m {
	case MotionSourceStatic:
		return "static"
	case MotionSourceSarOrbit:
		return "sar"
	case MotionSourceSpacetrack:
		return "spacetrack"
	default:
		return fmt.Sprintf("MotionSource(%d)", int(m))
	}
}

// ParseMotionSource maps a scenario keyword onto a MotionSource. The empty
// string selects the SAR orbit.
func ParseMotionSource(s string) (MotionSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sar", "sar_orbit":
		return MotionSourceSarOrbit, nil
	case "static", "fixed":
		return MotionSourceStatic, nil
	case "spacetrack", "sgp4", "tle":
		return MotionSourceSpacetrack, nil
	default:
		return 0, fmt.Errorf("unknown motion source %q", s)
	}
}

// Motion represents a position in ECEF metres.
type Motion struct {
	X float64
	Y float64
	Z float64
}

// PlatformDefinition represents a physical asset (the satellite or a ground
// station).
type PlatformDefinition struct {
	ID   string
	Name string
	Type string // PlatformTypeSatellite

	Coordinates  Motion
	MotionSource MotionSource

	// TLE lines, only read when MotionSource is MotionSourceSpacetrack.
	TLE1, TLE2 string
}
