package core

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrInvalidDelay is returned when a channel is given a negative delay.
var ErrInvalidDelay = errors.New("invalid propagation delay")

// DefaultDataRateMbps is the point-to-point device rate of the
// ground-station links.
const DefaultDataRateMbps = 520.0

// LinkStatus is the coarse state of a ground-station channel.
type LinkStatus int

const (
	LinkStatusUnknown LinkStatus = iota // never synchronised
	LinkStatusUp                        // delay tracks the satellite
	LinkStatusDown                      // satellite out of range
)

func (s LinkStatus) String() string {
	switch s {
	case LinkStatusUp:
		return "up"
	case LinkStatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// Channel is what the delay synchroniser needs from a communication
// channel: a writable propagation delay and an up/down flag.
type Channel interface {
	ID() string
	SetDelay(d time.Duration) error
	SetUp(up bool)
}

// PointToPointChannel connects one ground station to the satellite.
type PointToPointChannel struct {
	mu sync.RWMutex

	id           string
	dataRateMbps float64
	delay        time.Duration
	status       LinkStatus
	updates      int
}

// NewPointToPointChannel returns a channel in the Unknown state with zero
// delay. A non-positive rate falls back to DefaultDataRateMbps.
func NewPointToPointChannel(id string, dataRateMbps float64) *PointToPointChannel {
	if dataRateMbps <= 0 {
		dataRateMbps = DefaultDataRateMbps
	}
	return &PointToPointChannel{id: id, dataRateMbps: dataRateMbps}
}

func (c *PointToPointChannel) ID() string { return c.id }

// SetDelay overwrites the propagation delay.
func (c *PointToPointChannel) SetDelay(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: channel %q: %s", ErrInvalidDelay, c.id, d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	c.updates++
	return nil
}

// SetUp marks the channel up or down. The delay is left untouched.
func (c *PointToPointChannel) SetUp(up bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if up {
		c.status = LinkStatusUp
	} else {
		c.status = LinkStatusDown
	}
}

// Delay returns the current propagation delay.
func (c *PointToPointChannel) Delay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delay
}

// Status returns the current link status.
func (c *PointToPointChannel) Status() LinkStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsUp reports whether the channel is currently usable.
func (c *PointToPointChannel) IsUp() bool {
	return c.Status() == LinkStatusUp
}

// DataRateMbps returns the device data rate.
func (c *PointToPointChannel) DataRateMbps() float64 { return c.dataRateMbps }

// Updates returns how many times the delay has been written.
func (c *PointToPointChannel) Updates() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updates
}

// secondsToDuration converts float seconds to a Duration rounded to the
// nearest nanosecond. Values beyond the Duration range saturate.
func secondsToDuration(s float64) time.Duration {
	ns := math.Round(s * float64(time.Second))
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	if ns <= math.MinInt64 {
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ns)
}
