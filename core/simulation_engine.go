package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/internal/logging"
	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/timectrl"
)

// SimulationRecorder is the metrics sink for a whole simulation.
type SimulationRecorder interface {
	OrbitRecorder
	LinkRecorder
}

// SimulationEngine composes one scenario: the simulation clock and event
// scheduler, the satellite's orbital engine, the knowledge base with its
// ground-station channels, and the link delay synchroniser.
type SimulationEngine struct {
	Scenario  *Scenario
	KB        *KnowledgeBase
	Clock     *timectrl.TimeController
	Scheduler timectrl.EventScheduler
	Orbit     *OrbitalKinematicsEngine
	Links     *LinkDelaySynchronizer
	Channels  []*PointToPointChannel

	log      logging.Logger
	recorder SimulationRecorder
	tracer   trace.Tracer
	start    time.Time
	mode     timectrl.Mode

	started       bool
	detach        func()
	tickListeners []func(CourseChange)
}

// SimulationOption configures a SimulationEngine.
type SimulationOption func(*SimulationEngine)

// WithSimulationLogger sets the logger shared by all components.
func WithSimulationLogger(l logging.Logger) SimulationOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// WithSimulationMetrics records orbit and link measurements on r.
func WithSimulationMetrics(r SimulationRecorder) SimulationOption {
	return func(se *SimulationEngine) { se.recorder = r }
}

// WithSimulationTracer sets the tracer used for link sync spans.
func WithSimulationTracer(t trace.Tracer) SimulationOption {
	return func(se *SimulationEngine) { se.tracer = t }
}

// WithStartTime sets the simulation epoch. The default is the Unix epoch so
// runs are reproducible.
func WithStartTime(t time.Time) SimulationOption {
	return func(se *SimulationEngine) { se.start = t }
}

// WithRealTime paces Run against the wall clock instead of jumping from
// event to event.
func WithRealTime() SimulationOption {
	return func(se *SimulationEngine) { se.mode = timectrl.RealTime }
}

// NewSimulationEngine validates the scenario and wires every component. No
// event is scheduled until Start or Run.
func NewSimulationEngine(sc *Scenario, opts ...SimulationOption) (*SimulationEngine, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: nil scenario", ErrInvalidScenario)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	se := &SimulationEngine{
		Scenario: sc,
		log:      logging.Noop(),
		start:    time.Unix(0, 0).UTC(),
		mode:     timectrl.Accelerated,
	}
	for _, opt := range opts {
		opt(se)
	}

	se.KB = NewKnowledgeBase()
	channels, err := sc.Apply(se.KB)
	if err != nil {
		return nil, err
	}
	se.Channels = channels

	se.Clock = timectrl.NewTimeController(se.start, sc.Orbit.Timestep, se.mode)
	se.Scheduler = timectrl.NewEventScheduler(se.Clock)

	motion, err := NewMotionModel(&sc.Satellite, sc.Orbit, se.start)
	if err != nil {
		return nil, err
	}
	engineOpts := []EngineOption{
		WithMotionModel(motion),
		WithEngineID(sc.Satellite.ID),
		WithEngineLogger(se.log.With(logging.String("component", "orbit"))),
	}
	syncOpts := []SyncOption{
		WithDelayModel(sc.DelayModel),
		WithUnreachablePolicy(sc.Unreachable),
		WithMaxDelay(sc.MaxDelay),
		WithSyncLogger(se.log.With(logging.String("component", "link_delay"))),
	}
	if sc.LineOfSight {
		syncOpts = append(syncOpts, WithLineOfSightCheck())
	}
	if se.recorder != nil {
		engineOpts = append(engineOpts, WithEngineMetrics(se.recorder))
		syncOpts = append(syncOpts, WithSyncMetrics(se.recorder))
	}
	if se.tracer != nil {
		syncOpts = append(syncOpts, WithTracer(se.tracer))
	}

	if se.Orbit, err = NewOrbitalKinematicsEngine(sc.Orbit, se.Scheduler, engineOpts...); err != nil {
		return nil, err
	}
	if se.Links, err = NewLinkDelaySynchronizer(se.KB, syncOpts...); err != nil {
		return nil, err
	}
	return se, nil
}

// RegisterTickListener runs fn after every orbit update, once the link
// delays for that update have been written.
func (se *SimulationEngine) RegisterTickListener(fn func(CourseChange)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Now returns the current simulation time.
func (se *SimulationEngine) Now() time.Time { return se.Clock.Now() }

// Elapsed returns the simulation time since the start.
func (se *SimulationEngine) Elapsed() time.Duration { return se.Clock.Elapsed() }

// Start anchors the orbit at the current simulation time, sets the initial
// link delays and arms the periodic update. Calling it twice is a no-op.
func (se *SimulationEngine) Start() {
	if se.started {
		return
	}
	se.started = true
	se.Orbit.Initialize(se.Clock.Now())
	se.detach = se.Links.Attach(se.Orbit)
	se.Orbit.Subscribe(func(c CourseChange) {
		for _, fn := range se.tickListeners {
			fn(c)
		}
	})
	if se.mode == timectrl.RealTime {
		se.Clock.AddListener(func(time.Time) { se.Scheduler.RunDue() })
	}
	se.log.Info(context.Background(), "simulation started",
		logging.String("satellite", se.Orbit.ID()),
		logging.String("motion_source", se.Scenario.Satellite.MotionSource.String()),
		logging.Int("ground_stations", len(se.Channels)),
		logging.Duration("timestep", se.Scenario.Orbit.Timestep),
		logging.String("mode", se.mode.String()),
	)
}

// Run starts the simulation if needed and processes events until the
// simulation time reaches start+until, the queue empties or ctx is done.
// A non-positive until uses the scenario duration.
func (se *SimulationEngine) Run(ctx context.Context, until time.Duration) error {
	if until <= 0 {
		until = se.Scenario.Duration
	}
	se.Start()
	end := se.start.Add(until)

	var err error
	if se.mode == timectrl.RealTime {
		err = se.runRealTime(ctx, end)
	} else {
		err = se.runAccelerated(ctx, end)
	}

	se.log.Info(ctx, "simulation finished",
		logging.Duration("elapsed", se.Elapsed()),
		logging.Int("pending_events", se.Scheduler.Len()),
		logging.Err(err),
	)
	return err
}

func (se *SimulationEngine) runAccelerated(ctx context.Context, end time.Time) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, ok := se.Scheduler.NextEventTime()
		if !ok || next.After(end) {
			se.Clock.AdvanceTo(end)
			return nil
		}
		se.Clock.AdvanceTo(next)
		se.Scheduler.RunDue()
	}
}

func (se *SimulationEngine) runRealTime(ctx context.Context, end time.Time) error {
	se.Scheduler.RunDue()
	<-se.Clock.Start(ctx, end.Sub(se.Clock.Now()))
	return ctx.Err()
}

// Stop cancels the pending orbit update and detaches the synchroniser.
func (se *SimulationEngine) Stop() {
	if se.detach != nil {
		se.detach()
		se.detach = nil
	}
	se.Orbit.Stop()
}
