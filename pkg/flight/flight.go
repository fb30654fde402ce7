// Package flight tracks the fuel consumption of a single aircraft over the
// lifetime of its connection.
package flight

import (
	"time"

	"github.com/pkg/errors"

	"github.com/silversupreme/fuelwatch/pkg/telemetry"
)

// ErrClosed is returned when a finished flight is advanced or closed again.
var ErrClosed = errors.New("flight already closed")

// Phase is the position of a State in its lifecycle.
type Phase int

const (
	AwaitingFirstReading Phase = iota
	Tracking
	Closed
)

func (p Phase) String() string {
	switch p {
	case AwaitingFirstReading:
		return "awaiting first reading"
	case Tracking:
		return "tracking"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Observation is the instantaneous consumption computed from two
// consecutive readings.
type Observation struct {
	Identity      string
	Timestamp     time.Time
	FuelRemaining float64
	Rate          float64

	// Backwards is set when the reading is older than the one before it.
	Backwards bool
}

// Summary is emitted once, when the flight ends.
type Summary struct {
	Identity           string
	AverageConsumption float64
	Readings           int

	// First and last telemetry timestamps; zero if no reading arrived.
	Start, End time.Time

	// Wall-clock bounds of the connection, filled in by the server.
	ConnectedAt, DisconnectedAt time.Time
}

// State is the running aggregate of one flight. It is not safe for
// concurrent use; each connection owns its own.
type State struct {
	identity string
	phase    Phase
	readings int

	startTime time.Time
	startFuel float64
	lastTime  time.Time
	lastFuel  float64
}

// New returns a State awaiting its first reading.
func New(identity string) *State {
	return &State{identity: identity}
}

// Phase returns the current phase.
func (s *State) Phase() Phase { return s.phase }

// Identity returns the label the flight was created with.
func (s *State) Identity() string { return s.identity }

// Last returns the most recent valid reading.
func (s *State) Last() (time.Time, float64) { return s.lastTime, s.lastFuel }

// Advance feeds a reading into the flight. The returned bool reports whether
// an Observation was produced; the first reading only seeds the state.
func (s *State) Advance(rec telemetry.Record) (Observation, bool, error) {
	switch s.phase {
	case Closed:
		return Observation{}, false, ErrClosed

	case AwaitingFirstReading:
		s.startTime, s.startFuel = rec.Timestamp, rec.FuelRemaining
		s.lastTime, s.lastFuel = rec.Timestamp, rec.FuelRemaining
		s.readings = 1
		s.phase = Tracking
		return Observation{}, false, nil
	}

	obs := Observation{
		Identity:      s.identity,
		Timestamp:     rec.Timestamp,
		FuelRemaining: rec.FuelRemaining,
		Rate:          rate(s.lastFuel-rec.FuelRemaining, rec.Timestamp.Sub(s.lastTime)),
		Backwards:     rec.Timestamp.Before(s.lastTime),
	}

	s.lastTime, s.lastFuel = rec.Timestamp, rec.FuelRemaining
	s.readings++
	return obs, true, nil
}

// Close ends the flight and computes its average consumption. A flight with
// fewer than two readings spans no time and averages zero.
func (s *State) Close() (Summary, error) {
	if s.phase == Closed {
		return Summary{}, ErrClosed
	}
	s.phase = Closed

	return Summary{
		Identity:           s.identity,
		AverageConsumption: rate(s.startFuel-s.lastFuel, s.lastTime.Sub(s.startTime)),
		Readings:           s.readings,
		Start:              s.startTime,
		End:                s.lastTime,
	}, nil
}

// rate is fuel per second, or zero over a non-positive interval.
func rate(fuel float64, d time.Duration) float64 {
	secs := d.Seconds()
	if secs <= 0 {
		return 0
	}
	return fuel / secs
}
