package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/internal/logging"
)

// SpeedOfLight in metres/second.
const SpeedOfLight = 299792458.0

const tracerName = "github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/core"

// ErrInvalidLinkConfig is returned for unusable synchroniser settings.
var ErrInvalidLinkConfig = errors.New("invalid link delay configuration")

// DelayModel converts a distance in metres into a propagation delay.
type DelayModel int

const (
	// DelayModelSourceCompatible reproduces the bulk-transfer scenario numbers:
	// the metre distance is scaled by 1000 before dividing by c, so delays
	// are 1000x the physical value.
	DelayModelSourceCompatible DelayModel = iota
	// DelayModelPhysical divides the metre distance by c.
	DelayModelPhysical
)

func (m DelayModel) String() string {
	switch m {
	case DelayModelSourceCompatible:
		return "source"
	case DelayModelPhysical:
		return "physical"
	default:
		return fmt.Sprintf("DelayModel(%d)", int(m))
	}
}

// ParseDelayModel accepts "source" (also "", "legacy") or "physical".
func ParseDelayModel(s string) (DelayModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "source", "legacy", "source_compatible":
		return DelayModelSourceCompatible, nil
	case "physical":
		return DelayModelPhysical, nil
	default:
		return 0, fmt.Errorf("%w: unknown delay model %q", ErrInvalidLinkConfig, s)
	}
}

// DelaySeconds returns the propagation delay for a distance in metres.
func (m DelayModel) DelaySeconds(distanceMeters float64) float64 {
	if m == DelayModelPhysical {
		return distanceMeters / SpeedOfLight
	}
	return distanceMeters * 1000 / SpeedOfLight
}

// UnreachablePolicy decides what happens to a channel whose station is out
// of range. An infinite delay is never written.
type UnreachablePolicy int

const (
	// UnreachableMarkDown marks the channel down and keeps its last delay.
	UnreachableMarkDown UnreachablePolicy = iota
	// UnreachableClamp writes the configured maximum delay and keeps the
	// channel up.
	UnreachableClamp
	// UnreachableReject leaves the channel untouched.
	UnreachableReject
)

func (p UnreachablePolicy) String() string {
	switch p {
	case UnreachableMarkDown:
		return "mark_down"
	case UnreachableClamp:
		return "clamp"
	case UnreachableReject:
		return "reject"
	default:
		return fmt.Sprintf("UnreachablePolicy(%d)", int(p))
	}
}

// ParseUnreachablePolicy accepts "mark_down" (also ""), "clamp" or "reject".
func ParseUnreachablePolicy(s string) (UnreachablePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mark_down", "markdown", "down":
		return UnreachableMarkDown, nil
	case "clamp":
		return UnreachableClamp, nil
	case "reject", "skip":
		return UnreachableReject, nil
	default:
		return 0, fmt.Errorf("%w: unknown unreachable policy %q", ErrInvalidLinkConfig, s)
	}
}

// LinkRecorder receives per-station and per-sync measurements. applied
// reports whether delay was written to the station's channel.
// *observability.LinkCollector satisfies it.
type LinkRecorder interface {
	ObserveLink(station string, distanceMeters float64, delay time.Duration, applied, reachable, up bool)
	ObserveSync(d time.Duration)
}

// LinkDelayUpdate is the outcome of one station's recomputation.
type LinkDelayUpdate struct {
	StationID      string
	ChannelID      string
	DistanceMeters float64 // +Inf when out of range
	Delay          time.Duration
	ElevationDeg   float64
	Reachable      bool
	Applied        bool // a delay was written to the channel
	Up             bool
}

// LinkDelaySynchronizer keeps every ground-station channel's propagation
// delay consistent with the satellite position.
type LinkDelaySynchronizer struct {
	kb         *KnowledgeBase
	model      DelayModel
	policy     UnreachablePolicy
	maxDelay   time.Duration
	requireLOS bool

	log      logging.Logger
	recorder LinkRecorder
	tracer   trace.Tracer

	last []LinkDelayUpdate
}

// SyncOption configures a LinkDelaySynchronizer.
type SyncOption func(*LinkDelaySynchronizer)

// WithDelayModel selects the distance-to-delay conversion.
func WithDelayModel(m DelayModel) SyncOption {
	return func(s *LinkDelaySynchronizer) { s.model = m }
}

// WithUnreachablePolicy selects how out-of-range stations are handled.
func WithUnreachablePolicy(p UnreachablePolicy) SyncOption {
	return func(s *LinkDelaySynchronizer) { s.policy = p }
}

// WithMaxDelay sets the delay written by UnreachableClamp. Zero keeps the
// default: the delay at MaxLinkRangeMeters under the selected model.
func WithMaxDelay(d time.Duration) SyncOption {
	return func(s *LinkDelaySynchronizer) { s.maxDelay = d }
}

// WithLineOfSightCheck also treats stations whose view of the satellite is
// blocked by the Earth as unreachable.
func WithLineOfSightCheck() SyncOption {
	return func(s *LinkDelaySynchronizer) { s.requireLOS = true }
}

// WithSyncLogger sets the synchroniser logger.
func WithSyncLogger(l logging.Logger) SyncOption {
	return func(s *LinkDelaySynchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSyncMetrics records every sync on r.
func WithSyncMetrics(r LinkRecorder) SyncOption {
	return func(s *LinkDelaySynchronizer) { s.recorder = r }
}

// WithTracer overrides the tracer used for sync spans.
func WithTracer(t trace.Tracer) SyncOption {
	return func(s *LinkDelaySynchronizer) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewLinkDelaySynchronizer builds a synchroniser over the stations and
// channels held by kb.
func NewLinkDelaySynchronizer(kb *KnowledgeBase, opts ...SyncOption) (*LinkDelaySynchronizer, error) {
	if kb == nil {
		return nil, fmt.Errorf("%w: nil knowledge base", ErrInvalidLinkConfig)
	}
	s := &LinkDelaySynchronizer{
		kb:     kb,
		log:    logging.Noop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch s.model {
	case DelayModelSourceCompatible, DelayModelPhysical:
	default:
		return nil, fmt.Errorf("%w: delay model %s", ErrInvalidLinkConfig, s.model)
	}
	switch s.policy {
	case UnreachableMarkDown, UnreachableClamp, UnreachableReject:
	default:
		return nil, fmt.Errorf("%w: unreachable policy %s", ErrInvalidLinkConfig, s.policy)
	}
	if s.maxDelay < 0 {
		return nil, fmt.Errorf("%w: negative max delay %s", ErrInvalidLinkConfig, s.maxDelay)
	}
	if s.maxDelay == 0 {
		s.maxDelay = secondsToDuration(s.model.DelaySeconds(MaxLinkRangeMeters))
	}

	fields := []logging.Field{
		logging.String("delay_model", s.model.String()),
		logging.String("unreachable_policy", s.policy.String()),
		logging.Duration("max_delay", s.maxDelay),
		logging.Bool("line_of_sight", s.requireLOS),
	}
	if s.model == DelayModelSourceCompatible {
		s.log.Warn(context.Background(), "link delays use the source-compatible scale (distance*1000/c); use the physical model for real delays", fields...)
	} else {
		s.log.Info(context.Background(), "link delay synchroniser configured", fields...)
	}
	return s, nil
}

// DelayModel returns the configured conversion.
func (s *LinkDelaySynchronizer) DelayModel() DelayModel { return s.model }

// MaxDelay returns the clamp delay.
func (s *LinkDelaySynchronizer) MaxDelay() time.Duration { return s.maxDelay }

// Last returns the updates produced by the most recent sync.
func (s *LinkDelaySynchronizer) Last() []LinkDelayUpdate {
	return append([]LinkDelayUpdate(nil), s.last...)
}

// Attach sets the initial channel delays from the engine's current position
// and subscribes to its course changes. The returned func detaches.
func (s *LinkDelaySynchronizer) Attach(engine *OrbitalKinematicsEngine) (detach func()) {
	s.Sync(context.Background(), engine.Position())
	return engine.Subscribe(func(c CourseChange) {
		s.Sync(context.Background(), c.Position)
	})
}

// Sync recomputes the distance from every ground station to sat and writes
// the resulting delay to the station's channel. Stations are processed in
// registration order; the writes overwrite, never accumulate.
func (s *LinkDelaySynchronizer) Sync(ctx context.Context, sat Vec3) []LinkDelayUpdate {
	start := time.Now()
	stations := s.kb.GroundStations()

	ctx, span := s.tracer.Start(ctx, "link_delay.sync", trace.WithAttributes(
		attribute.Int("stations", len(stations)),
		attribute.Float64("satellite.x", sat.X),
		attribute.Float64("satellite.y", sat.Y),
		attribute.Float64("satellite.z", sat.Z),
	))
	defer span.End()

	updates := make([]LinkDelayUpdate, 0, len(stations))
	for _, gs := range stations {
		u, err := s.syncStation(ctx, gs, sat)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.Error(ctx, "failed to update link delay",
				logging.String("station", gs.ID),
				logging.Err(err),
			)
		}
		if s.recorder != nil {
			s.recorder.ObserveLink(gs.ID, u.DistanceMeters, u.Delay, u.Applied, u.Reachable, u.Up)
		}
		updates = append(updates, u)
	}

	if s.recorder != nil {
		s.recorder.ObserveSync(time.Since(start))
	}
	s.last = updates
	return updates
}

func (s *LinkDelaySynchronizer) syncStation(ctx context.Context, gs GroundStation, sat Vec3) (LinkDelayUpdate, error) {
	d := CalculateDistance(gs.Position, sat)
	u := LinkDelayUpdate{
		StationID:      gs.ID,
		DistanceMeters: d,
		ElevationDeg:   ElevationDegrees(gs.Position, sat),
		Reachable:      !math.IsInf(d, 0) && !math.IsNaN(d),
	}
	if u.Reachable && s.requireLOS && !HasLineOfSight(gs.Position, sat) {
		u.Reachable = false
	}

	ch := s.kb.ChannelFor(gs.ID)
	if ch == nil {
		return u, fmt.Errorf("%w: no channel for station %q", ErrStationNotFound, gs.ID)
	}
	u.ChannelID = ch.ID()
	u.Up = channelUp(ch)

	if u.Reachable {
		u.Delay = secondsToDuration(s.model.DelaySeconds(d))
		if err := ch.SetDelay(u.Delay); err != nil {
			return u, err
		}
		ch.SetUp(true)
		u.Applied, u.Up = true, true
		s.log.Info(ctx, "link delay updated",
			logging.String("station", gs.ID),
			logging.String("channel", u.ChannelID),
			logging.Float64("distance_m", d),
			logging.Duration("delay", u.Delay),
			logging.Float64("elevation_deg", u.ElevationDeg),
		)
		return u, nil
	}

	switch s.policy {
	case UnreachableClamp:
		u.Delay = s.maxDelay
		if err := ch.SetDelay(u.Delay); err != nil {
			return u, err
		}
		ch.SetUp(true)
		u.Applied, u.Up = true, true
	case UnreachableMarkDown:
		ch.SetUp(false)
		u.Up = false
	case UnreachableReject:
	}
	s.log.Warn(ctx, "ground station out of range",
		logging.String("station", gs.ID),
		logging.String("channel", u.ChannelID),
		logging.String("policy", s.policy.String()),
		logging.Float64("elevation_deg", u.ElevationDeg),
	)
	return u, nil
}

// channelUp reports the channel state when the channel exposes one.
func channelUp(ch Channel) bool {
	if st, ok := ch.(interface{ IsUp() bool }); ok {
		return st.IsUp()
	}
	return false
}
