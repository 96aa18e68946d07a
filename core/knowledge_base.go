package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrStationExists   = errors.New("ground station already exists")
	ErrStationNotFound = errors.New("ground station not found")
	ErrStationBadInput = errors.New("invalid ground station")
	ErrChannelExists   = errors.New("ground station already has a channel")
	ErrChannelBadInput = errors.New("invalid channel")
)

// GroundStation is a fixed terminal linked to the satellite.
type GroundStation struct {
	ID       string
	Name     string
	Position Vec3 // ECEF metres
}

// KnowledgeBase is the scenario context: the ground stations and the
// channel each of them uses to reach the satellite. It is owned by whatever
// composes the simulation and passed to the synchroniser explicitly.
//
// Access is guarded by an RWMutex so the metrics endpoint can read while
// the simulation loop writes.
type KnowledgeBase struct {
	mu sync.RWMutex

	stations map[string]*GroundStation
	order    []string
	channels map[string]Channel
}

// NewKnowledgeBase creates an empty knowledge base.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		stations: make(map[string]*GroundStation),
		channels: make(map[string]Channel),
	}
}

// AddGroundStation registers a station. Stations keep registration order.
func (kb *KnowledgeBase) AddGroundStation(gs *GroundStation) error {
	if gs == nil || gs.ID == "" {
		return fmt.Errorf("%w", ErrStationBadInput)
	}
	if !gs.Position.IsFinite() {
		return fmt.Errorf("%w: %q has non-finite position", ErrStationBadInput, gs.ID)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.stations[gs.ID]; exists {
		return fmt.Errorf("%w: %q", ErrStationExists, gs.ID)
	}
	cp := *gs
	kb.stations[gs.ID] = &cp
	kb.order = append(kb.order, gs.ID)
	return nil
}

// GroundStation returns a copy of the station, or false if unknown.
func (kb *KnowledgeBase) GroundStation(id string) (GroundStation, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	gs, ok := kb.stations[id]
	if !ok {
		return GroundStation{}, false
	}
	return *gs, true
}

// GroundStations returns copies of all stations in registration order.
func (kb *KnowledgeBase) GroundStations() []GroundStation {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]GroundStation, 0, len(kb.order))
	for _, id := range kb.order {
		out = append(out, *kb.stations[id])
	}
	return out
}

// AddChannel attaches the channel used by a registered station.
func (kb *KnowledgeBase) AddChannel(stationID string, ch Channel) error {
	if ch == nil || ch.ID() == "" {
		return fmt.Errorf("%w", ErrChannelBadInput)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, ok := kb.stations[stationID]; !ok {
		return fmt.Errorf("%w: %q", ErrStationNotFound, stationID)
	}
	if _, exists := kb.channels[stationID]; exists {
		return fmt.Errorf("%w: %q", ErrChannelExists, stationID)
	}
	kb.channels[stationID] = ch
	return nil
}

// ChannelFor returns the channel of a station, or nil if none is attached.
func (kb *KnowledgeBase) ChannelFor(stationID string) Channel {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.channels[stationID]
}

// Channels returns every attached channel in station registration order.
func (kb *KnowledgeBase) Channels() []Channel {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]Channel, 0, len(kb.channels))
	for _, id := range kb.order {
		if ch, ok := kb.channels[id]; ok {
			out = append(out, ch)
		}
	}
	return out
}
