// Package periph implements a board on top of periph.io, for Linux single board computers whose
// header pins are exposed through the kernel GPIO drivers.
package periph

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/viam-labs/keydrive/components/board"
	"github.com/viam-labs/keydrive/logging"
)

// Model is the registered model name of the periph.io board.
const Model = "periph"

// defaultPWMFreqHz matches the PWM frequency of the Arduino Uno pins the controller started on.
const defaultPWMFreqHz = 490

// A Config describes the attributes of a periph.io board.
type Config struct {
	DefaultPWMFreqHz uint `json:"default_pwm_freq_hz,omitempty"`
}

func init() {
	board.RegisterModel(Model, board.Registration{
		Constructor: func(ctx context.Context, attrs interface{}, logger logging.Logger) (board.Board, error) {
			conf, ok := attrs.(*Config)
			if !ok {
				return nil, errors.Errorf("expected *periph.Config but got %T", attrs)
			}
			return NewBoard(*conf, logger)
		},
		AttributeConverter: func(attributes map[string]interface{}) (interface{}, error) {
			return board.TransformAttributeMap[Config](attributes)
		},
	})
}

// lookupPin is gpioreg.ByName, swapped out in tests.
var lookupPin = func(name string) gpio.PinIO {
	return gpioreg.ByName(name)
}

// initHost loads the periph.io host drivers once per process.
var initHost = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Board drives pins found through the periph.io registry. Pins without hardware PWM are driven
// by a software PWM loop.
type Board struct {
	mu          sync.RWMutex
	pins        map[string]*gpioPin
	defaultFreq physic.Frequency
	logger      logging.Logger

	// number of software PWM loops running
	softLoops atomic.Int32

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewBoard initializes the host drivers and returns a board.
func NewBoard(conf Config, logger logging.Logger) (*Board, error) {
	if err := initHost(); err != nil {
		return nil, errors.Wrap(err, "error initializing periph.io host drivers")
	}
	return newBoard(conf, logger), nil
}

func newBoard(conf Config, logger logging.Logger) *Board {
	freq := conf.DefaultPWMFreqHz
	if freq == 0 {
		freq = defaultPWMFreqHz
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Board{
		pins:        map[string]*gpioPin{},
		defaultFreq: physic.Frequency(freq) * physic.Hertz,
		logger:      logger,
		cancelCtx:   cancelCtx,
		cancel:      cancel,
	}
}

func (b *Board) pinByName(name string) (*gpioPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gp, ok := b.pins[name]; ok {
		return gp, nil
	}
	pin := lookupPin(name)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	gp := &gpioPin{b: b, pin: pin, name: name, freq: b.defaultFreq}
	b.pins[name] = gp
	return gp, nil
}

// GPIOPinByName returns the GPIO pin by the given name.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.pinByName(name)
}

// PulseInputByName returns the pin by the given name as a pulse input.
func (b *Board) PulseInputByName(name string) (board.PulseInput, error) {
	return b.pinByName(name)
}

// Close stops the software PWM loops and drives every output low.
func (b *Board) Close(ctx context.Context) error {
	b.cancel()
	b.activeBackgroundWorkers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, gp := range b.pins {
		if gp.output {
			err = multierr.Combine(err, gp.pin.Out(gpio.Low))
		}
	}
	return err
}

// gpioPin state is guarded by the board's mutex.
type gpioPin struct {
	b      *Board
	pin    gpio.PinIO
	name   string
	output bool

	duty gpio.Duty
	freq physic.Frequency

	// softLoop is set while a software PWM loop drives the pin. softGen identifies the current
	// loop; any other loop still sleeping exits when it wakes.
	softLoop bool
	softGen  uint64
}

func (gp *gpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.b.mu.Lock()
	defer gp.b.mu.Unlock()

	gp.duty = 0
	gp.stopSoftLoop()
	return gp.set(high)
}

// set must be called with the board lock held.
func (gp *gpioPin) set(high bool) error {
	gp.output = true
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp *gpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}

func (gp *gpioPin) PWM(ctx context.Context, extra map[string]interface{}) (float64, error) {
	gp.b.mu.RLock()
	defer gp.b.mu.RUnlock()

	return float64(gp.duty) / float64(gpio.DutyMax), nil
}

func (gp *gpioPin) SetPWM(ctx context.Context, dutyCyclePct float64, extra map[string]interface{}) error {
	if dutyCyclePct < 0 || dutyCyclePct > 1 {
		return errors.Errorf("duty cycle %v out of range [0, 1] on pin %q", dutyCyclePct, gp.name)
	}
	gp.b.mu.Lock()
	defer gp.b.mu.Unlock()

	gp.duty = gpio.Duty(dutyCyclePct * float64(gpio.DutyMax))
	if gp.duty == 0 {
		gp.stopSoftLoop()
		return gp.set(false)
	}
	if gp.softLoop {
		return nil
	}

	gp.output = true
	if err := gp.pin.PWM(gp.duty, gp.freq); err == nil {
		return nil
	}
	gp.b.logger.Debugw("no hardware pwm, falling back to software pwm", "pin", gp.name)
	gp.softLoop = true
	gp.softGen++
	gen := gp.softGen
	gp.b.softLoops.Inc()
	gp.b.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer gp.b.activeBackgroundWorkers.Done()
		defer gp.b.softLoops.Dec()
		gp.softwarePWMLoop(gp.b.cancelCtx, gen)
	})
	return nil
}

// stopSoftLoop makes a running software loop exit on its next pass. Must be called with the
// board lock held.
func (gp *gpioPin) stopSoftLoop() {
	gp.softLoop = false
	gp.softGen++
}

func (gp *gpioPin) softwarePWMLoop(ctx context.Context, gen uint64) {
	for {
		cont := func() bool {
			gp.b.mu.Lock()
			if gp.softGen != gen {
				gp.b.mu.Unlock()
				return false
			}
			duty, period := gp.duty, gp.freq.Period()
			err := gp.set(true)
			gp.b.mu.Unlock()
			if err != nil {
				gp.b.logger.Errorw("error setting pin", "pin", gp.name, "error", err)
				return true
			}

			onPeriod := time.Duration(float64(duty) / float64(gpio.DutyMax) * float64(period))
			if !goutils.SelectContextOrWait(ctx, onPeriod) {
				return false
			}

			gp.b.mu.Lock()
			current := gp.softGen == gen
			if current {
				err = gp.set(false)
			}
			gp.b.mu.Unlock()
			if !current {
				return false
			}
			if err != nil {
				gp.b.logger.Errorw("error setting pin", "pin", gp.name, "error", err)
			}
			return goutils.SelectContextOrWait(ctx, period-onPeriod)
		}()
		if !cont {
			return
		}
	}
}

func (gp *gpioPin) PWMFreq(ctx context.Context, extra map[string]interface{}) (uint, error) {
	gp.b.mu.RLock()
	defer gp.b.mu.RUnlock()

	return uint(gp.freq / physic.Hertz), nil
}

func (gp *gpioPin) SetPWMFreq(ctx context.Context, freqHz uint, extra map[string]interface{}) error {
	gp.b.mu.Lock()
	defer gp.b.mu.Unlock()

	if freqHz == 0 {
		gp.freq = gp.b.defaultFreq
	} else {
		gp.freq = physic.Frequency(freqHz) * physic.Hertz
	}
	if gp.duty == 0 || gp.softLoop {
		return nil
	}
	return errors.Wrapf(gp.pin.PWM(gp.duty, gp.freq), "error changing pwm frequency on pin %q", gp.name)
}

// PulseIn times one pulse with edge interrupts. The pin is switched to an input on first use.
func (gp *gpioPin) PulseIn(ctx context.Context, high bool, timeout time.Duration) (time.Duration, error) {
	gp.b.mu.Lock()
	err := gp.pin.In(gpio.PullDown, gpio.BothEdges)
	gp.output = false
	gp.b.mu.Unlock()
	if err != nil {
		return 0, errors.Wrapf(err, "error configuring pin %q as an input", gp.name)
	}

	want := gpio.Low
	if high {
		want = gpio.High
	}
	deadline := time.Now().Add(timeout)
	waitWhile := func(level gpio.Level) error {
		for gp.pin.Read() == level {
			if err := ctx.Err(); err != nil {
				return err
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return board.ErrPulseTimeout
			}
			gp.pin.WaitForEdge(remaining)
		}
		return nil
	}

	if err := waitWhile(!want); err != nil {
		return 0, err
	}
	start := time.Now()
	if err := waitWhile(want); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
