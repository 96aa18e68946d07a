package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/core"
	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/internal/logging"
	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/internal/observability"
)

type options struct {
	scenarioPath string
	duration     time.Duration
	timestep     time.Duration
	delayModel   string
	unreachable  string
	lineOfSight  *bool // nil keeps the scenario setting
	metricsAddr  string
	realtime     bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.StringVar(&opts.scenarioPath, "scenario", "", "path to a JSON or YAML scenario (default: built-in two-station scenario)")
	fs.DurationVar(&opts.duration, "duration", 0, "simulated time to run (default: scenario duration)")
	fs.DurationVar(&opts.timestep, "timestep", 0, "orbit re-evaluation interval (default: scenario timestep)")
	fs.StringVar(&opts.delayModel, "delay-model", "", "delay model override: source or physical")
	fs.StringVar(&opts.unreachable, "unreachable", "", "out-of-range policy override: mark_down, clamp or reject")
	fs.BoolFunc("line-of-sight", "treat Earth-blocked stations as unreachable; -line-of-sight=false turns off the scenario setting", func(v string) error {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		opts.lineOfSight = &on
		return nil
	})
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	fs.BoolVar(&opts.realtime, "realtime", false, "pace the simulation against the wall clock")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// loadScenario returns the scenario file (or the built-in default) with the
// command-line overrides applied.
func loadScenario(opts options) (*core.Scenario, error) {
	sc := core.DefaultScenario()
	if opts.scenarioPath != "" {
		loaded, err := core.LoadScenarioFile(opts.scenarioPath)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}
	if opts.duration > 0 {
		sc.Duration = opts.duration
	}
	if opts.timestep > 0 {
		sc.Orbit.Timestep = opts.timestep
	}
	if opts.delayModel != "" {
		m, err := core.ParseDelayModel(opts.delayModel)
		if err != nil {
			return nil, err
		}
		sc.DelayModel = m
	}
	if opts.unreachable != "" {
		p, err := core.ParseUnreachablePolicy(opts.unreachable)
		if err != nil {
			return nil, err
		}
		sc.Unreachable = p
	}
	if opts.lineOfSight != nil {
		sc.LineOfSight = *opts.lineOfSight
	}
	return sc, sc.Validate()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, log := logging.WithRunLogger(ctx, logging.NewFromEnv())

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	sc, err := loadScenario(opts)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	collector, err := observability.NewLinkCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metricsSrv := serveMetrics(opts.metricsAddr, collector, log)

	simOpts := []core.SimulationOption{
		core.WithSimulationLogger(log),
		core.WithSimulationMetrics(collector),
		core.WithSimulationTracer(observability.Tracer()),
	}
	if opts.realtime {
		simOpts = append(simOpts, core.WithRealTime())
	}
	engine, err := core.NewSimulationEngine(sc, simOpts...)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}
	engine.RegisterTickListener(func(c core.CourseChange) {
		printTick(out, c, engine.Links.Last())
	})

	engine.Start()
	printTick(out, core.CourseChange{
		EngineID: engine.Orbit.ID(),
		Time:     engine.Now(),
		Position: engine.Orbit.Position(),
		Velocity: engine.Orbit.Velocity(),
	}, engine.Links.Last())

	runErr := engine.Run(ctx, sc.Duration)
	engine.Stop()

	for _, ch := range engine.Channels {
		fmt.Fprintf(out, "channel %-14s status=%-7s delay=%-14s rate=%.0f Mbps updates=%d\n",
			ch.ID(), ch.Status(), ch.Delay(), ch.DataRateMbps(), ch.Updates())
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if errors.Is(runErr, context.Canceled) {
		log.Info(ctx, "simulation interrupted")
		return nil
	}
	return runErr
}

func printTick(out io.Writer, c core.CourseChange, updates []core.LinkDelayUpdate) {
	fmt.Fprintf(out, "[t=%9.3fs] %s @ (%.0f, %.0f, %.0f) m\n",
		c.Elapsed.Seconds(), c.EngineID, c.Position.X, c.Position.Y, c.Position.Z)
	for _, u := range updates {
		fmt.Fprintf(out, "  -> %-12s distance=%12.0f m delay=%-14s reachable=%-5v up=%v\n",
			u.StationID, u.DistanceMeters, u.Delay, u.Reachable, u.Up)
	}
}

func serveMetrics(addr string, collector *observability.LinkCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
