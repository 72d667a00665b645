// Package config defines the structures to configure a keydrive controller and the means to read
// them from disk.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/components/base/wheeled"
	"github.com/viam-labs/keydrive/components/board"
	// for board models.
	_ "github.com/viam-labs/keydrive/components/board/register"
	"github.com/viam-labs/keydrive/logging"
	"github.com/viam-labs/keydrive/serial"
	"github.com/viam-labs/keydrive/services/keycontrol"
	"github.com/viam-labs/keydrive/services/proximity"
)

// DefaultBoardModel is used when the board section names no model.
const DefaultBoardModel = "periph"

// A Config describes the configuration of a controller.
type Config struct {
	ConfigFilePath string `json:"-"`

	Serial    SerialConfig     `json:"serial"`
	Board     board.Config     `json:"board"`
	Base      wheeled.Config   `json:"base"`
	Proximity proximity.Config `json:"proximity"`
	Control   ControlConfig    `json:"control"`
	LogLevel  logging.Level    `json:"log_level,omitempty"`
}

// SerialConfig describes the link commands arrive on.
type SerialConfig struct {
	// Port is the device path. When empty the first port found by serial.Search is used.
	Port     string `json:"port,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty"`
}

// Options returns the options to open the port with. Reads never block.
func (conf *SerialConfig) Options() serial.Options {
	opts := serial.DefaultOptions()
	if conf.BaudRate != 0 {
		opts.BaudRate = conf.BaudRate
	}
	return opts
}

// Validate ensures all parts of the config are valid.
func (conf *SerialConfig) Validate(path string) error {
	opts := conf.Options()
	if err := opts.Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// ControlConfig tunes the control loop.
type ControlConfig struct {
	// PollInterval is either a duration string such as "10ms" or a number of nanoseconds.
	PollInterval    interface{} `json:"poll_interval,omitempty"`
	LegacyDutyTable bool        `json:"legacy_duty_table,omitempty"`
	StartDisabled   bool        `json:"start_disabled,omitempty"`
	EchoInput       bool        `json:"echo_input,omitempty"`
}

// Interval returns the parsed poll interval, or keycontrol.DefaultPollInterval when unset.
func (conf *ControlConfig) Interval() (time.Duration, error) {
	if conf.PollInterval == nil {
		return keycontrol.DefaultPollInterval, nil
	}
	d, err := cast.ToDurationE(conf.PollInterval)
	if err != nil {
		return 0, errors.Wrap(err, "invalid poll_interval")
	}
	return d, nil
}

// Validate ensures all parts of the config are valid.
func (conf *ControlConfig) Validate(path string) error {
	d, err := conf.Interval()
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if d <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("poll_interval must be positive, got %v", d))
	}
	return nil
}

// Options converts the section into controller options.
func (conf *ControlConfig) Options() (keycontrol.Options, error) {
	d, err := conf.Interval()
	if err != nil {
		return keycontrol.Options{}, err
	}
	return keycontrol.Options{
		PollInterval:    d,
		LegacyDutyTable: conf.LegacyDutyTable,
		StartDisabled:   conf.StartDisabled,
		EchoInput:       conf.EchoInput,
	}, nil
}

// Default returns the configuration of the original hardware: 9600 baud, motors on pins 9, 3, 11
// and 10, and the range finder on pins 6 and 5.
func Default() *Config {
	conf := &Config{}
	if err := conf.Ensure(); err != nil {
		// defaults always validate
		panic(err)
	}
	return conf
}

// Ensure fills in defaults for anything left unset and then validates the whole config.
func (c *Config) Ensure() error {
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = serial.DefaultBaudRate
	}
	if c.Board.Model == "" {
		c.Board.Model = DefaultBoardModel
	}

	defBase := wheeled.DefaultConfig()
	fillString(&c.Base.LeftForward, defBase.LeftForward)
	fillString(&c.Base.LeftBackward, defBase.LeftBackward)
	fillString(&c.Base.RightForward, defBase.RightForward)
	fillString(&c.Base.RightBackward, defBase.RightBackward)

	defProx := proximity.DefaultConfig()
	fillString(&c.Proximity.TriggerPin, defProx.TriggerPin)
	fillString(&c.Proximity.EchoPin, defProx.EchoPin)
	if c.Proximity.WarningDistanceCm == 0 {
		c.Proximity.WarningDistanceCm = defProx.WarningDistanceCm
	}

	return c.Validate()
}

// Validate checks every section, reporting the first failure with its dotted path.
func (c *Config) Validate() error {
	if err := c.Serial.Validate("serial"); err != nil {
		return err
	}
	if err := c.Board.Validate("board"); err != nil {
		return err
	}
	if err := c.Base.Validate("base"); err != nil {
		return err
	}
	if err := c.Proximity.Validate("proximity"); err != nil {
		return err
	}
	if err := c.Control.Validate("control"); err != nil {
		return err
	}
	if !c.Proximity.Disabled {
		for _, pin := range []string{c.Base.LeftForward, c.Base.LeftBackward, c.Base.RightForward, c.Base.RightBackward} {
			if pin == c.Proximity.TriggerPin || pin == c.Proximity.EchoPin {
				return utils.NewConfigValidationError("proximity",
					errors.Errorf("pin %q is already used by the base", pin))
			}
		}
	}
	return nil
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
