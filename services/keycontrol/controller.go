// Package keycontrol drives a base from single character commands read off a serial link.
//
// Each iteration of the control loop checks the proximity monitor, reads at most one byte and
// applies it:
//
//	f b l r   set the direction and drive at the current duty
//	0 to 5    set the duty to 0% to 50% and re-drive the current direction
//	x         toggle keyboard control; while off, f b l r and 0 to 5 are ignored
//
// Other letters and digits are reported as invalid input. Everything else is ignored.
package keycontrol

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/components/base"
	"github.com/viam-labs/keydrive/logging"
	"github.com/viam-labs/keydrive/services/proximity"
)

// A SpeedTable maps speed levels 0 to 5 onto 8-bit duty cycles.
type SpeedTable [MaxSpeedLevel + 1]uint8

// CanonicalSpeedTable is 10% steps of 255, rounded to nearest.
var CanonicalSpeedTable = SpeedTable{0, 26, 51, 77, 102, 128}

// LegacySpeedTable reproduces the original firmware, which truncated 25.5 * level.
var LegacySpeedTable = SpeedTable{0, 25, 51, 76, 102, 127}

// InitialDuty is the duty before any speed command: full power, as the original firmware booted.
const InitialDuty = 255

// DefaultPollInterval paces the control loop.
const DefaultPollInterval = 10 * time.Millisecond

// Options tune a Controller. The zero value is usable.
type Options struct {
	// Clock paces Run. Defaults to the wall clock.
	Clock clock.Clock
	// PollInterval is the wait between iterations of Run. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// LegacyDutyTable selects LegacySpeedTable instead of CanonicalSpeedTable.
	LegacyDutyTable bool
	// StartDisabled starts with keyboard control off.
	StartDisabled bool
	// EchoInput writes every printable input byte back before handling it.
	EchoInput bool
}

// State is a snapshot of the controller.
type State struct {
	Direction base.Direction
	Duty      uint8
	Enabled   bool
	Warned    bool
}

// A Controller owns the drive state. It is driven by a single goroutine, through Run or Step.
type Controller struct {
	decoder  *Decoder
	reporter *Reporter
	base     base.Base
	monitor  *proximity.Monitor
	logger   logging.Logger

	clock        clock.Clock
	pollInterval time.Duration
	speeds       SpeedTable
	echo         bool

	direction base.Direction
	duty      uint8
	enabled   bool

	sensorFailing bool
}

// NewController returns a controller reading commands through decoder and driving b. monitor may
// be nil when there is no proximity sensor.
func NewController(
	decoder *Decoder,
	reporter *Reporter,
	b base.Base,
	monitor *proximity.Monitor,
	opts Options,
	logger logging.Logger,
) *Controller {
	c := &Controller{
		decoder:      decoder,
		reporter:     reporter,
		base:         b,
		monitor:      monitor,
		logger:       logger,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
		speeds:       CanonicalSpeedTable,
		echo:         opts.EchoInput,
		direction:    base.None,
		duty:         InitialDuty,
		enabled:      !opts.StartDisabled,
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if opts.LegacyDutyTable {
		c.speeds = LegacySpeedTable
	}
	return c
}

// State returns a snapshot of the drive state.
func (c *Controller) State() State {
	s := State{Direction: c.direction, Duty: c.duty, Enabled: c.enabled}
	if c.monitor != nil {
		s.Warned = c.monitor.Warned()
	}
	return s
}

// Run steps the controller until ctx is done. Errors from a step are logged and the loop goes on.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Infow("control loop started", "poll_interval", c.pollInterval, "enabled", c.enabled)
	for {
		if err := c.Step(ctx); err != nil && ctx.Err() == nil {
			c.logger.Errorw("control step failed", "error", err)
		}
		if !utils.SelectContextOrWaitChan(ctx, c.clock.After(c.pollInterval)) {
			c.logger.Info("control loop stopped")
			return nil
		}
	}
}

// Step runs one iteration: a proximity check, then at most one command.
func (c *Controller) Step(ctx context.Context) error {
	c.checkProximity(ctx)

	b, ok, err := c.decoder.ReceiveCommand()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return c.Handle(ctx, b)
}

func (c *Controller) checkProximity(ctx context.Context) {
	if c.monitor == nil {
		return
	}
	ev, err := c.monitor.Check(ctx)
	if err != nil {
		// warn once per outage, the loop polls far too often to warn every time
		if !c.sensorFailing {
			c.sensorFailing = true
			c.logger.Warnw("proximity check failed", "error", err)
		} else {
			c.logger.CDebugw(ctx, "proximity check failed", "error", err)
		}
		return
	}
	if c.sensorFailing {
		c.sensorFailing = false
		c.logger.Info("proximity sensor recovered")
	}
	switch ev {
	case proximity.EventWarning:
		c.reporter.Warn(c.monitor.Message(ev))
	case proximity.EventClear:
		c.reporter.Report(c.monitor.Message(ev))
	case proximity.EventNone:
	}
}

// Handle applies one input byte.
func (c *Controller) Handle(ctx context.Context, b byte) error {
	if c.echo && b >= ' ' && b < 0x7f {
		c.reporter.Report(string(b))
	}

	cmd := Classify(b)
	switch cmd.Class {
	case ClassIgnored:
		return nil
	case ClassInvalid:
		c.reporter.Report(InvalidInputMsg)
		return nil
	case ClassToggle:
		c.ToggleMode()
		return nil
	case ClassDirection, ClassSpeed:
	}

	if !c.enabled {
		c.logger.CDebugw(ctx, "keyboard control off, dropping command", "command", string(b))
		return nil
	}

	if cmd.Class == ClassDirection {
		c.direction = cmd.Direction
		c.reporter.Report(DirectionMessage(cmd.Direction))
	} else {
		c.duty = c.speeds[cmd.Level]
		c.reporter.Report(SpeedMessage(cmd.Level))
	}
	return c.actuate(ctx)
}

// ToggleMode flips keyboard control and returns whether it is now on.
func (c *Controller) ToggleMode() bool {
	c.enabled = !c.enabled
	if c.enabled {
		c.reporter.Report(EnabledMsg)
	} else {
		c.reporter.Report(ExitedMsg)
	}
	return c.enabled
}

func (c *Controller) actuate(ctx context.Context) error {
	if err := c.base.ApplyDrive(ctx, c.direction, c.duty); err != nil {
		c.reporter.Warn(fmt.Sprintf(driveErrorFormat, err))
		return err
	}
	return nil
}
