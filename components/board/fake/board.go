// Package fake implements a fake board. Pins remember what was written to them and pulse inputs
// replay a scripted list of echo widths, which is enough to run the controller without hardware.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/viam-labs/keydrive/components/board"
	"github.com/viam-labs/keydrive/logging"
)

// Model is the registered model name of the fake board.
const Model = "fake"

// A Config describes the attributes of a fake board.
type Config struct {
	// EchoMicros is replayed cyclically by every pulse input, in microseconds. 0 means no echo.
	EchoMicros []int `json:"echo_us,omitempty"`
	FailNew    bool  `json:"fail_new"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	for _, us := range conf.EchoMicros {
		if us < 0 {
			return errors.Errorf("%s.echo_us: pulse widths must not be negative, got %d", path, us)
		}
	}
	if conf.FailNew {
		return errors.New("whoops")
	}
	return nil
}

func init() {
	board.RegisterModel(Model, board.Registration{
		Constructor: func(ctx context.Context, attrs interface{}, logger logging.Logger) (board.Board, error) {
			conf, ok := attrs.(*Config)
			if !ok {
				return nil, errors.Errorf("expected *fake.Config but got %T", attrs)
			}
			return NewBoard(*conf, logger), nil
		},
		AttributeConverter: func(attributes map[string]interface{}) (interface{}, error) {
			return board.TransformAttributeMap[Config](attributes)
		},
	})
}

// A Board provides dummy data from fake parts in order to implement a Board.
type Board struct {
	mu          sync.Mutex
	gpios       map[string]*GPIOPin
	pulseInputs map[string]*PulseInput
	echoes      []int
	closed      bool
	logger      logging.Logger
}

// NewBoard returns a new fake board.
func NewBoard(conf Config, logger logging.Logger) *Board {
	return &Board{
		gpios:       map[string]*GPIOPin{},
		pulseInputs: map[string]*PulseInput{},
		echoes:      append([]int(nil), conf.EchoMicros...),
		logger:      logger,
	}
}

// GPIOPinByName returns the GPIO pin by the given name, creating it on first use.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.Pin(name)
}

// Pin is GPIOPinByName returning the concrete fake pin.
func (b *Board) Pin(name string) (*GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("board is closed")
	}
	pin, ok := b.gpios[name]
	if !ok {
		pin = &GPIOPin{}
		b.gpios[name] = pin
	}
	return pin, nil
}

// PulseInputByName returns the pulse input by the given name, creating it on first use.
func (b *Board) PulseInputByName(name string) (board.PulseInput, error) {
	return b.PulseInput(name)
}

// PulseInput is PulseInputByName returning the concrete fake input.
func (b *Board) PulseInput(name string) (*PulseInput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("board is closed")
	}
	in, ok := b.pulseInputs[name]
	if !ok {
		in = &PulseInput{}
		in.SetEchoes(b.echoes...)
		b.pulseInputs[name] = in
	}
	return in, nil
}

// Close drives every pin low.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, pin := range b.gpios {
		err = multierr.Combine(err, pin.Set(ctx, false, nil))
	}
	b.closed = true
	return err
}

// A GPIOPin reflects what was last written to it and keeps the history of PWM writes.
type GPIOPin struct {
	high    bool
	pwm     float64
	pwmFreq uint
	writes  []float64
	failErr error

	mu sync.Mutex
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.high = high
	gp.pwm = 0
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.high, nil
}

// PWM gets the pin's given duty cycle.
func (gp *GPIOPin) PWM(ctx context.Context, extra map[string]interface{}) (float64, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.pwm, nil
}

// SetPWM sets the pin to the given duty cycle. It fails with the error given to FailWrites, if any.
func (gp *GPIOPin) SetPWM(ctx context.Context, dutyCyclePct float64, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.failErr != nil {
		return gp.failErr
	}
	if dutyCyclePct < 0 || dutyCyclePct > 1 {
		return errors.Errorf("duty cycle %v out of range [0, 1]", dutyCyclePct)
	}
	gp.pwm = dutyCyclePct
	gp.high = dutyCyclePct > 0
	gp.writes = append(gp.writes, dutyCyclePct)
	return nil
}

// PWMFreq gets the PWM frequency of the pin.
func (gp *GPIOPin) PWMFreq(ctx context.Context, extra map[string]interface{}) (uint, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.pwmFreq, nil
}

// SetPWMFreq sets the given pin to the given PWM frequency.
func (gp *GPIOPin) SetPWMFreq(ctx context.Context, freqHz uint, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.pwmFreq = freqHz
	return nil
}

// Duty returns the last written duty as an 8-bit value.
func (gp *GPIOPin) Duty() uint8 {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return uint8(gp.pwm*255 + 0.5)
}

// Writes returns every duty cycle written with SetPWM, oldest first.
func (gp *GPIOPin) Writes() []float64 {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return append([]float64(nil), gp.writes...)
}

// FailWrites makes every following SetPWM return err. A nil err restores normal behavior.
func (gp *GPIOPin) FailWrites(err error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.failErr = err
}

// A PulseInput replays scripted pulse widths.
type PulseInput struct {
	mu     sync.Mutex
	echoes []time.Duration
	next   int
	calls  int
}

// SetEchoes replaces the script. Widths are in microseconds and 0 simulates a missing echo.
func (p *PulseInput) SetEchoes(micros ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.echoes = make([]time.Duration, 0, len(micros))
	for _, us := range micros {
		p.echoes = append(p.echoes, time.Duration(us)*time.Microsecond)
	}
	p.next = 0
}

// PulseIn returns the next scripted width. An empty script or a zero entry times out.
func (p *PulseInput) PulseIn(ctx context.Context, high bool, timeout time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.echoes) == 0 {
		return 0, board.ErrPulseTimeout
	}
	width := p.echoes[p.next]
	p.next = (p.next + 1) % len(p.echoes)
	if width == 0 || width > timeout {
		return 0, board.ErrPulseTimeout
	}
	return width, nil
}

// Calls returns how many times PulseIn has been called.
func (p *PulseInput) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
