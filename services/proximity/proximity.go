// Package proximity watches a distance sensor and reports when an object enters or leaves the
// warning range in front of the base.
package proximity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/components/sensor/ultrasonic"
	"github.com/viam-labs/keydrive/logging"
)

// DefaultWarningDistanceCm is the range the original controller warned at.
const DefaultWarningDistanceCm = 30

// ClearMessage is reported when an object leaves the warning range.
const ClearMessage = "Object no longer in warning range."

// An Event is the result of one proximity check.
type Event int

const (
	// EventNone means the warning state did not change.
	EventNone Event = iota
	// EventWarning means an object just entered the warning range.
	EventWarning
	// EventClear means the object just left the warning range.
	EventClear
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventWarning:
		return "warning"
	case EventClear:
		return "clear"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Config describes the proximity sensor and its warning range.
type Config struct {
	ultrasonic.Config
	WarningDistanceCm float64 `json:"warning_distance_cm,omitempty"`
	Disabled          bool    `json:"disabled,omitempty"`
}

// DefaultConfig is the trigger on pin 6 and echo on pin 5, warning at 30cm.
func DefaultConfig() Config {
	return Config{
		Config:            ultrasonic.Config{TriggerPin: "6", EchoPin: "5"},
		WarningDistanceCm: DefaultWarningDistanceCm,
	}
}

// Validate ensures all parts of the config are valid. A disabled monitor needs no pins.
func (conf *Config) Validate(path string) error {
	if conf.Disabled {
		return nil
	}
	if conf.WarningDistanceCm < 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("warning_distance_cm must not be negative, got %v", conf.WarningDistanceCm))
	}
	return conf.Config.Validate(path)
}

// Monitor turns distance samples into edge triggered warnings. It is not safe for concurrent use;
// the control loop owns it.
type Monitor struct {
	sensor    ultrasonic.DistanceSensor
	threshold float64
	warned    bool
	logger    logging.Logger
}

// NewMonitor returns a monitor that warns when sensor reads at or below thresholdCm.
func NewMonitor(sensor ultrasonic.DistanceSensor, thresholdCm float64, logger logging.Logger) *Monitor {
	if thresholdCm <= 0 {
		thresholdCm = DefaultWarningDistanceCm
	}
	return &Monitor{sensor: sensor, threshold: thresholdCm, logger: logger}
}

// Check takes one sample and updates the warning state. A sample without an echo leaves the
// state untouched, as does any sensor error, which is returned.
func (m *Monitor) Check(ctx context.Context) (Event, error) {
	dist, err := m.sensor.Distance(ctx)
	if errors.Is(err, ultrasonic.ErrNoEcho) {
		m.logger.CDebug(ctx, "no echo, distance unknown")
		return EventNone, nil
	}
	if err != nil {
		return EventNone, err
	}
	return m.Observe(dist), nil
}

// Observe applies a distance sample in cm and returns the resulting edge, if any.
func (m *Monitor) Observe(distanceCm float64) Event {
	inRange := distanceCm <= m.threshold
	switch {
	case inRange && !m.warned:
		m.warned = true
		return EventWarning
	case !inRange && m.warned:
		m.warned = false
		return EventClear
	default:
		return EventNone
	}
}

// Warned reports whether an object is currently in the warning range.
func (m *Monitor) Warned() bool {
	return m.warned
}

// Threshold returns the warning distance in cm.
func (m *Monitor) Threshold() float64 {
	return m.threshold
}

// Message returns the status line for an edge, or "" for EventNone.
func (m *Monitor) Message(e Event) string {
	switch e {
	case EventWarning:
		return WarningMessage(m.threshold)
	case EventClear:
		return ClearMessage
	case EventNone:
		return ""
	default:
		return ""
	}
}

// WarningMessage is reported when an object enters a warning range of thresholdCm.
func WarningMessage(thresholdCm float64) string {
	return "!!! WARNING !!! Object ahead within " + strconv.FormatFloat(thresholdCm, 'f', -1, 64) + "cm."
}
