package core

import (
	"context"
	"fmt"
	"time"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/internal/logging"
	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/timectrl"
)

// CourseChange is the snapshot handed to observers after every update.
type CourseChange struct {
	EngineID string
	Time     time.Time     // simulation time of the update
	Elapsed  time.Duration // time since the engine epoch
	Position Vec3
	Velocity Vec3
}

// OrbitRecorder receives one call per orbit re-evaluation.
// *observability.LinkCollector satisfies it.
type OrbitRecorder interface {
	ObserveOrbitUpdate(x, y, z float64)
}

// OrbitalKinematicsEngine owns the orbital state of one satellite. It
// re-evaluates its MotionModel on a fixed cadence through the scheduler,
// keeping exactly one outstanding timer, and notifies observers after every
// re-evaluation.
//
// The engine is driven by scheduler callbacks and is not safe for
// concurrent use.
type OrbitalKinematicsEngine struct {
	id       string
	params   OrbitParameters
	sched    timectrl.EventScheduler
	model    MotionModel
	log      logging.Logger
	recorder OrbitRecorder

	started  bool
	stopped  bool
	epoch    time.Time
	position Vec3
	velocity Vec3
	pending  string

	observers []courseObserver
	nextObsID int
}

type courseObserver struct {
	id int
	fn func(CourseChange)
}

// EngineOption configures an OrbitalKinematicsEngine.
type EngineOption func(*OrbitalKinematicsEngine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l logging.Logger) EngineOption {
	return func(e *OrbitalKinematicsEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithEngineMetrics records every update on r.
func WithEngineMetrics(r OrbitRecorder) EngineOption {
	return func(e *OrbitalKinematicsEngine) { e.recorder = r }
}

// WithMotionModel replaces the default SAR orbit with another variant.
func WithMotionModel(m MotionModel) EngineOption {
	return func(e *OrbitalKinematicsEngine) {
		if m != nil {
			e.model = m
		}
	}
}

// WithEngineID names the engine in logs and course changes.
func WithEngineID(id string) EngineOption {
	return func(e *OrbitalKinematicsEngine) {
		if id != "" {
			e.id = id
		}
	}
}

// NewOrbitalKinematicsEngine validates params and returns an engine in the
// uninitialised state. Nothing is scheduled until Initialize, SetPosition
// or Update is called.
func NewOrbitalKinematicsEngine(params OrbitParameters, sched timectrl.EventScheduler, opts ...EngineOption) (*OrbitalKinematicsEngine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, fmt.Errorf("%w: nil scheduler", ErrInvalidOrbit)
	}

	e := &OrbitalKinematicsEngine{
		id:     "satellite",
		params: params,
		sched:  sched,
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.model == nil {
		m, err := NewSarOrbitModel(params)
		if err != nil {
			return nil, err
		}
		e.model = m
	}
	e.position = e.model.Position()
	e.velocity = e.model.Velocity()
	return e, nil
}

// ID returns the engine name.
func (e *OrbitalKinematicsEngine) ID() string { return e.id }

// Started reports whether the epoch has been anchored.
func (e *OrbitalKinematicsEngine) Started() bool { return e.started }

// Epoch returns the anchored reference time (zero before start).
func (e *OrbitalKinematicsEngine) Epoch() time.Time { return e.epoch }

// Position returns the last computed position.
func (e *OrbitalKinematicsEngine) Position() Vec3 { return e.position }

// Velocity returns the last computed velocity.
func (e *OrbitalKinematicsEngine) Velocity() Vec3 { return e.velocity }

// Pending returns the ID of the single outstanding update, if any.
func (e *OrbitalKinematicsEngine) Pending() (string, bool) {
	return e.pending, e.pending != ""
}

// Subscribe registers fn for course changes. Observers run synchronously in
// registration order. The returned func removes the subscription.
func (e *OrbitalKinematicsEngine) Subscribe(fn func(CourseChange)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	e.nextObsID++
	id := e.nextObsID
	e.observers = append(e.observers, courseObserver{id: id, fn: fn})
	return func() {
		for i, o := range e.observers {
			if o.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// Initialize anchors the epoch (first call only) and runs an update, which
// arms the first periodic re-evaluation one timestep later.
func (e *OrbitalKinematicsEngine) Initialize(epoch time.Time) {
	if !e.started {
		e.epoch = epoch
		e.started = true
	}
	e.Update()
}

// SetPosition stores p and requests an immediate re-evaluation, replacing
// any pending update. The re-evaluation derives the position from the orbit
// again, so p is only visible until the scheduler runs the update.
func (e *OrbitalKinematicsEngine) SetPosition(p Vec3) {
	now := e.sched.Now()
	if !e.started {
		e.epoch = now
		e.started = true
	}
	e.position = p
	e.arm(now)
}

// Update re-evaluates position and velocity for the current simulation
// time, re-arms the periodic timer and notifies observers. The result only
// depends on Now() minus the epoch.
func (e *OrbitalKinematicsEngine) Update() {
	now := e.sched.Now()
	if !e.started {
		e.epoch = now
		e.started = true
	}

	elapsed := now.Sub(e.epoch)
	e.model.Advance(elapsed)
	e.position = e.model.Position()
	e.velocity = e.model.Velocity()

	e.arm(now.Add(e.params.Timestep))

	if e.recorder != nil {
		e.recorder.ObserveOrbitUpdate(e.position.X, e.position.Y, e.position.Z)
	}
	e.log.Debug(context.Background(), "satellite course change",
		logging.String("engine", e.id),
		logging.Duration("elapsed", elapsed),
		logging.Vector("position", e.position.X, e.position.Y, e.position.Z),
	)

	change := CourseChange{
		EngineID: e.id,
		Time:     now,
		Elapsed:  elapsed,
		Position: e.position,
		Velocity: e.velocity,
	}
	observers := append([]courseObserver(nil), e.observers...)
	for _, o := range observers {
		o.fn(change)
	}
}

// Stop cancels the outstanding timer and drops all observers. Later
// Update calls still recompute state but no longer re-arm the timer.
func (e *OrbitalKinematicsEngine) Stop() {
	e.stopped = true
	if e.pending != "" {
		e.sched.Cancel(e.pending)
		e.pending = ""
	}
	e.observers = nil
}

// arm cancels the pending update and schedules a new one at 'at'. A stopped
// engine never re-arms.
func (e *OrbitalKinematicsEngine) arm(at time.Time) {
	if e.stopped {
		return
	}
	if e.pending != "" {
		e.sched.Cancel(e.pending)
	}
	var id string
	id = e.sched.Schedule(at, func() {
		if e.pending == id {
			e.pending = ""
		}
		e.Update()
	})
	e.pending = id
}
