package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/model"
)

// ErrInvalidScenario is returned for scenario files that cannot be run.
var ErrInvalidScenario = errors.New("invalid scenario")

// ScenarioFormat selects the scenario file encoding.
type ScenarioFormat string

const (
	FormatJSON ScenarioFormat = "json"
	FormatYAML ScenarioFormat = "yaml"
)

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFromPath(path string) ScenarioFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// StationSpec is a ground station plus the rate of its channel.
type StationSpec struct {
	GroundStation
	DataRateMbps float64
}

// Scenario is everything needed to run one simulation.
type Scenario struct {
	Orbit          OrbitParameters
	Satellite      model.PlatformDefinition
	GroundStations []StationSpec

	DelayModel  DelayModel
	Unreachable UnreachablePolicy
	MaxDelay    time.Duration
	LineOfSight bool

	Duration time.Duration
}

// Reference run of the bulk-transfer scenario.
const (
	DefaultScenarioTimestep = 1481142500 * time.Microsecond // a quarter orbit
	DefaultScenarioDuration = 12000 * time.Second
)

// DefaultScenario returns the reference two-station scenario: stations at
// the north and south poles, the satellite on the SAR orbit re-evaluated
// every quarter orbit, and a 12000 s run.
func DefaultScenario() *Scenario {
	orbit := DefaultOrbitParameters()
	orbit.Timestep = DefaultScenarioTimestep
	return &Scenario{
		Orbit: orbit,
		Satellite: model.PlatformDefinition{
			ID:           "sar-1",
			Name:         "SAR satellite",
			Type:         model.PlatformTypeSatellite,
			MotionSource: model.MotionSourceSarOrbit,
		},
		GroundStations: []StationSpec{
			{GroundStation: GroundStation{ID: "gs-north", Name: "North Pole", Position: Vec3{Z: EarthRadiusMeters}}, DataRateMbps: DefaultDataRateMbps},
			{GroundStation: GroundStation{ID: "gs-south", Name: "South Pole", Position: Vec3{Z: -EarthRadiusMeters}}, DataRateMbps: DefaultDataRateMbps},
		},
		DelayModel:  DelayModelSourceCompatible,
		Unreachable: UnreachableMarkDown,
		Duration:    DefaultScenarioDuration,
	}
}

// Validate checks the scenario can be composed into a simulation.
func (s *Scenario) Validate() error {
	if err := s.Orbit.Validate(); err != nil {
		return err
	}
	if len(s.GroundStations) == 0 {
		return fmt.Errorf("%w: no ground stations", ErrInvalidScenario)
	}
	seen := make(map[string]struct{}, len(s.GroundStations))
	for _, gs := range s.GroundStations {
		if gs.ID == "" {
			return fmt.Errorf("%w: ground station without id", ErrInvalidScenario)
		}
		if _, dup := seen[gs.ID]; dup {
			return fmt.Errorf("%w: duplicate ground station %q", ErrInvalidScenario, gs.ID)
		}
		seen[gs.ID] = struct{}{}
		if !gs.Position.IsFinite() {
			return fmt.Errorf("%w: ground station %q has non-finite position", ErrInvalidScenario, gs.ID)
		}
	}
	if s.Satellite.MotionSource == model.MotionSourceSpacetrack {
		if s.Satellite.TLE1 == "" || s.Satellite.TLE2 == "" {
			return fmt.Errorf("%w: spacetrack satellite needs both TLE lines", ErrInvalidScenario)
		}
		if err := ValidateTLE(s.Satellite.TLE1, s.Satellite.TLE2); err != nil {
			return fmt.Errorf("%w: satellite %q: %w", ErrInvalidScenario, s.Satellite.ID, err)
		}
	}
	if s.MaxDelay < 0 {
		return fmt.Errorf("%w: negative max delay", ErrInvalidScenario)
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidScenario)
	}
	return nil
}

// Apply registers the scenario's ground stations in kb, each with a fresh
// point-to-point channel, and returns the channels in station order.
func (s *Scenario) Apply(kb *KnowledgeBase) ([]*PointToPointChannel, error) {
	if kb == nil {
		return nil, fmt.Errorf("%w: nil knowledge base", ErrInvalidScenario)
	}
	channels := make([]*PointToPointChannel, 0, len(s.GroundStations))
	for _, spec := range s.GroundStations {
		gs := spec.GroundStation
		if err := kb.AddGroundStation(&gs); err != nil {
			return nil, err
		}
		ch := NewPointToPointChannel("p2p-"+gs.ID, spec.DataRateMbps)
		if err := kb.AddChannel(gs.ID, ch); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// internal file shapes, unexported so they can evolve freely.
type scenarioFile struct {
	Orbit          *orbitFile    `json:"orbit" yaml:"orbit"`
	Satellite      *platformFile `json:"satellite" yaml:"satellite"`
	GroundStations []stationFile `json:"ground_stations" yaml:"ground_stations"`
	Links          *linksFile    `json:"links" yaml:"links"`
	Duration       string        `json:"duration" yaml:"duration"`
}

type orbitFile struct {
	PeriodSeconds         float64 `json:"period_seconds" yaml:"period_seconds"`
	RadiusMeters          float64 `json:"radius_meters" yaml:"radius_meters"`
	AzimuthOrbitsPerCycle int     `json:"azimuth_orbits_per_cycle" yaml:"azimuth_orbits_per_cycle"`
	Timestep              string  `json:"timestep" yaml:"timestep"`
}

type platformFile struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	MotionSource string `json:"motion_source" yaml:"motion_source"`
	TLE1         string `json:"tle1" yaml:"tle1"`
	TLE2         string `json:"tle2" yaml:"tle2"`
}

type stationFile struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	X            float64 `json:"x" yaml:"x"`
	Y            float64 `json:"y" yaml:"y"`
	Z            float64 `json:"z" yaml:"z"`
	DataRateMbps float64 `json:"data_rate_mbps" yaml:"data_rate_mbps"`
}

type linksFile struct {
	DelayModel  string `json:"delay_model" yaml:"delay_model"`
	Unreachable string `json:"unreachable" yaml:"unreachable"`
	MaxDelay    string `json:"max_delay" yaml:"max_delay"`
	LineOfSight bool   `json:"line_of_sight" yaml:"line_of_sight"`
}

// LoadScenarioFile reads a scenario from path; the format follows the
// file extension.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenarioFile: %w", err)
	}
	defer f.Close()
	return LoadScenario(f, FormatFromPath(path))
}

// LoadScenario decodes a scenario. Sections or fields left out keep the
// values of DefaultScenario, except ground stations: a file that lists any
// replaces the default pair.
func LoadScenario(r io.Reader, format ScenarioFormat) (*Scenario, error) {
	var payload scenarioFile
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("LoadScenario: yaml decode failed: %w", err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&payload); err != nil {
			return nil, fmt.Errorf("LoadScenario: json decode failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("LoadScenario: unsupported format %q", format)
	}

	sc := DefaultScenario()

	if o := payload.Orbit; o != nil {
		if o.PeriodSeconds != 0 {
			sc.Orbit.PeriodSeconds = o.PeriodSeconds
		}
		if o.RadiusMeters != 0 {
			sc.Orbit.RadiusMeters = o.RadiusMeters
		}
		if o.AzimuthOrbitsPerCycle != 0 {
			sc.Orbit.AzimuthOrbitsPerCycle = o.AzimuthOrbitsPerCycle
		}
		if o.Timestep != "" {
			d, err := time.ParseDuration(o.Timestep)
			if err != nil {
				return nil, fmt.Errorf("%w: orbit timestep: %v", ErrInvalidScenario, err)
			}
			sc.Orbit.Timestep = d
		}
	}

	if p := payload.Satellite; p != nil {
		if p.ID != "" {
			sc.Satellite.ID = p.ID
		}
		if p.Name != "" {
			sc.Satellite.Name = p.Name
		}
		src, err := model.ParseMotionSource(p.MotionSource)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		sc.Satellite.MotionSource = src
		sc.Satellite.TLE1 = p.TLE1
		sc.Satellite.TLE2 = p.TLE2
	}

	if len(payload.GroundStations) > 0 {
		sc.GroundStations = make([]StationSpec, 0, len(payload.GroundStations))
		for _, gs := range payload.GroundStations {
			rate := gs.DataRateMbps
			if rate == 0 {
				rate = DefaultDataRateMbps
			}
			sc.GroundStations = append(sc.GroundStations, StationSpec{
				GroundStation: GroundStation{
					ID:       gs.ID,
					Name:     gs.Name,
					Position: Vec3{X: gs.X, Y: gs.Y, Z: gs.Z},
				},
				DataRateMbps: rate,
			})
		}
	}

	if l := payload.Links; l != nil {
		m, err := ParseDelayModel(l.DelayModel)
		if err != nil {
			return nil, err
		}
		sc.DelayModel = m
		p, err := ParseUnreachablePolicy(l.Unreachable)
		if err != nil {
			return nil, err
		}
		sc.Unreachable = p
		if l.MaxDelay != "" {
			d, err := time.ParseDuration(l.MaxDelay)
			if err != nil {
				return nil, fmt.Errorf("%w: max_delay: %v", ErrInvalidScenario, err)
			}
			sc.MaxDelay = d
		}
		sc.LineOfSight = l.LineOfSight
	}

	if payload.Duration != "" {
		d, err := time.ParseDuration(payload.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w: duration: %v", ErrInvalidScenario, err)
		}
		sc.Duration = d
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}
