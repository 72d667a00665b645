// Package wheeled implements a two motor wheeled base driven by four PWM channels, two per motor.
package wheeled

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/components/base"
	"github.com/viam-labs/keydrive/components/board"
	"github.com/viam-labs/keydrive/logging"
)

// Config names the board pins wired to each motor channel.
type Config struct {
	LeftForward   string `json:"left_forward"`
	LeftBackward  string `json:"left_backward"`
	RightForward  string `json:"right_forward"`
	RightBackward string `json:"right_backward"`
	PWMFreqHz     uint   `json:"pwm_freq_hz,omitempty"`
}

// DefaultConfig is the wiring of the original controller: left motor on pins 9/3, right motor
// on pins 11/10.
func DefaultConfig() Config {
	return Config{
		LeftForward:   "9",
		LeftBackward:  "3",
		RightForward:  "11",
		RightBackward: "10",
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.LeftForward == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "left_forward")
	}
	if cfg.LeftBackward == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "left_backward")
	}
	if cfg.RightForward == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "right_forward")
	}
	if cfg.RightBackward == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "right_backward")
	}
	if dups := lo.FindDuplicates(cfg.pins()); len(dups) != 0 {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("each motor channel needs its own pin, %v used more than once", dups))
	}
	return nil
}

func (cfg *Config) pins() []string {
	return []string{cfg.LeftForward, cfg.LeftBackward, cfg.RightForward, cfg.RightBackward}
}

type channel struct {
	name string
	pin  board.GPIOPin
}

// Base drives the four channels of a differential drive.
type Base struct {
	mu       sync.Mutex
	channels [4]channel
	logger   logging.Logger
}

// New looks up the channel pins on b and leaves every channel at 0.
func New(ctx context.Context, b board.Board, cfg Config, logger logging.Logger) (*Base, error) {
	if err := cfg.Validate("base"); err != nil {
		return nil, err
	}
	names := [4]string{"left_forward", "left_backward", "right_forward", "right_backward"}
	wb := &Base{logger: logger}
	for i, pinName := range cfg.pins() {
		pin, err := b.GPIOPinByName(pinName)
		if err != nil {
			return nil, errors.Wrapf(err, "error finding %s pin %q", names[i], pinName)
		}
		if cfg.PWMFreqHz != 0 {
			if err := pin.SetPWMFreq(ctx, cfg.PWMFreqHz, nil); err != nil {
				return nil, errors.Wrapf(err, "error setting pwm frequency of %s pin %q", names[i], pinName)
			}
		}
		wb.channels[i] = channel{name: names[i], pin: pin}
	}
	if err := wb.Stop(ctx); err != nil {
		return nil, err
	}
	return wb, nil
}

// ApplyDrive writes every channel, even after one fails, and returns the combined errors.
func (wb *Base) ApplyDrive(ctx context.Context, dir base.Direction, duty uint8) error {
	out := base.OutputsFor(dir, duty)
	duties := [4]uint8{out.LeftForward, out.LeftBackward, out.RightForward, out.RightBackward}

	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.logger.CDebugw(ctx, "applying drive", "direction", dir.String(), "duty", duty)

	var err error
	for i, ch := range wb.channels {
		if writeErr := ch.pin.SetPWM(ctx, float64(duties[i])/255, nil); writeErr != nil {
			err = multierr.Combine(err, errors.Wrapf(writeErr, "error writing %s channel", ch.name))
		}
	}
	return err
}

// Stop writes 0 to every channel.
func (wb *Base) Stop(ctx context.Context) error {
	return wb.ApplyDrive(ctx, base.None, 0)
}

// Close stops the motors. The board is owned by the caller and stays open.
func (wb *Base) Close(ctx context.Context) error {
	return wb.Stop(ctx)
}
