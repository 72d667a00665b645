// Package ultrasonic implements an HC-SR04 style ultrasonic range finder: a trigger output and an
// echo input whose pulse width is the round trip time of the sound.
package ultrasonic

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/components/board"
	"github.com/viam-labs/keydrive/logging"
)

// ErrNoEcho means no usable echo was measured, so the distance is unknown.
var ErrNoEcho = errors.New("no echo received")

// SpeedOfSoundCmPerMicro is the speed of sound at room temperature, in cm per microsecond.
const SpeedOfSoundCmPerMicro = 0.034

const (
	triggerWidth     = 10 * time.Microsecond
	defaultTimeoutMs = 25
)

// A DistanceSensor reports the distance to the nearest object ahead, in cm.
type DistanceSensor interface {
	Distance(ctx context.Context) (float64, error)
}

// Config describes the pins of the sensor.
type Config struct {
	TriggerPin string `json:"trigger_pin"`
	EchoPin    string `json:"echo_pin"`
	// TimeoutMs bounds one echo measurement. The default of 25ms covers about 4m of range.
	TimeoutMs uint `json:"timeout_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.TriggerPin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "trigger_pin")
	}
	if conf.EchoPin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "echo_pin")
	}
	if conf.TriggerPin == conf.EchoPin {
		return utils.NewConfigValidationError(path, errors.New("trigger_pin and echo_pin must differ"))
	}
	return nil
}

// Sensor is an ultrasonic sensor.
type Sensor struct {
	mu         sync.Mutex
	triggerPin board.GPIOPin
	echo       board.PulseInput
	timeout    time.Duration
	logger     logging.Logger
}

// NewSensor looks up the sensor's pins on b and drives the trigger low.
func NewSensor(ctx context.Context, b board.Board, conf Config, logger logging.Logger) (*Sensor, error) {
	if err := conf.Validate("ultrasonic"); err != nil {
		return nil, err
	}
	trigger, err := b.GPIOPinByName(conf.TriggerPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab gpio %q", conf.TriggerPin)
	}
	echo, err := b.PulseInputByName(conf.EchoPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab pulse input %q", conf.EchoPin)
	}
	timeoutMs := conf.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = defaultTimeoutMs
	}
	if err := trigger.Set(ctx, false, nil); err != nil {
		return nil, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}
	return &Sensor{
		triggerPin: trigger,
		echo:       echo,
		timeout:    time.Duration(timeoutMs) * time.Millisecond,
		logger:     logger,
	}, nil
}

// Distance fires one ping and returns the distance to the echo in cm. A timed out or zero
// length echo returns ErrNoEcho.
func (s *Sensor) Distance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// a high pulse of at least 10us on the trigger starts a ping
	if err := s.triggerPin.Set(ctx, true, nil); err != nil {
		return 0, errors.Wrap(err, "ultrasonic: cannot set trigger pin to high")
	}
	if !utils.SelectContextOrWait(ctx, triggerWidth) {
		return 0, ctx.Err()
	}
	if err := s.triggerPin.Set(ctx, false, nil); err != nil {
		return 0, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}

	width, err := s.echo.PulseIn(ctx, true, s.timeout)
	if errors.Is(err, board.ErrPulseTimeout) {
		return 0, ErrNoEcho
	}
	if err != nil {
		return 0, errors.Wrap(err, "ultrasonic: cannot read echo")
	}
	if width <= 0 {
		return 0, ErrNoEcho
	}
	dist := DistanceFromEcho(width)
	s.logger.CDebugw(ctx, "echo", "width", width, "distance_cm", dist)
	return dist, nil
}

// DistanceFromEcho converts a round trip echo time into a one way distance in cm.
func DistanceFromEcho(width time.Duration) float64 {
	micros := float64(width) / float64(time.Microsecond)
	return micros * SpeedOfSoundCmPerMicro / 2
}
