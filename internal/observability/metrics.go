package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LinkCollector bundles Prometheus metrics for the orbit engine and the
// ground-station links whose delays follow it.
type LinkCollector struct {
	gatherer prometheus.Gatherer

	OrbitUpdates      prometheus.Counter
	SatellitePosition *prometheus.GaugeVec

	LinkDelay       *prometheus.GaugeVec
	LinkDistance    *prometheus.GaugeVec
	LinkUp          *prometheus.GaugeVec
	LinkUnreachable *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
}

// NewLinkCollector registers the metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewLinkCollector(reg prometheus.Registerer) (*LinkCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	updates, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbit_updates_total",
		Help: "Number of orbit position/velocity re-evaluations.",
	}))
	if err != nil {
		return nil, err
	}

	position, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "satellite_position_meters",
		Help: "Latest satellite ECEF position component in metres.",
	}, []string{"axis"}))
	if err != nil {
		return nil, err
	}

	delay, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "link_propagation_delay_seconds",
		Help: "Propagation delay currently configured on the station's channel.",
	}, []string{"station"}))
	if err != nil {
		return nil, err
	}

	distance, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "link_distance_meters",
		Help: "Latest ground-station-to-satellite distance; +Inf when out of range.",
	}, []string{"station"}))
	if err != nil {
		return nil, err
	}

	up, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "link_up",
		Help: "1 when the station's channel is up, 0 otherwise.",
	}, []string{"station"}))
	if err != nil {
		return nil, err
	}

	unreachable, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "link_unreachable_total",
		Help: "Number of syncs in which the station was beyond line-of-sight range.",
	}, []string{"station"}))
	if err != nil {
		return nil, err
	}

	syncDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "link_sync_duration_seconds",
		Help:    "Wall-clock time spent recomputing all link delays after a course change.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}))
	if err != nil {
		return nil, err
	}

	return &LinkCollector{
		gatherer:          gatherer,
		OrbitUpdates:      updates,
		SatellitePosition: position,
		LinkDelay:         delay,
		LinkDistance:      distance,
		LinkUp:            up,
		LinkUnreachable:   unreachable,
		SyncDuration:      syncDuration,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *LinkCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *LinkCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveOrbitUpdate records one orbit re-evaluation and the new position.
func (c *LinkCollector) ObserveOrbitUpdate(x, y, z float64) {
	if c == nil {
		return
	}
	if c.OrbitUpdates != nil {
		c.OrbitUpdates.Inc()
	}
	if c.SatellitePosition != nil {
		c.SatellitePosition.WithLabelValues("x").Set(x)
		c.SatellitePosition.WithLabelValues("y").Set(y)
		c.SatellitePosition.WithLabelValues("z").Set(z)
	}
}

// ObserveLink records the outcome of one station's delay recomputation.
// The delay gauge follows what was written to the channel, so a clamped
// delay is recorded and a skipped write keeps the previous value.
func (c *LinkCollector) ObserveLink(station string, distanceMeters float64, delay time.Duration, applied, reachable, up bool) {
	if c == nil {
		return
	}
	if c.LinkDistance != nil {
		c.LinkDistance.WithLabelValues(station).Set(distanceMeters)
	}
	if applied && c.LinkDelay != nil {
		c.LinkDelay.WithLabelValues(station).Set(delay.Seconds())
	}
	if !reachable && c.LinkUnreachable != nil {
		c.LinkUnreachable.WithLabelValues(station).Inc()
	}
	if c.LinkUp != nil {
		v := 0.0
		if up {
			v = 1
		}
		c.LinkUp.WithLabelValues(station).Set(v)
	}
}

// ObserveSync records how long a full sync pass took.
func (c *LinkCollector) ObserveSync(d time.Duration) {
	if c == nil || c.SyncDuration == nil {
		return
	}
	c.SyncDuration.Observe(d.Seconds())
}

// register adds c to reg. A collector already registered under the same
// descriptor is reused when it has the same concrete type, so several
// simulations can share the default registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("collector %T already registered with incompatible type %T", c, are.ExistingCollector)
	}
	return existing, nil
}
