// Package inject provides structs whose behavior can be overridden per test by setting their
// Func fields. Unset fields fall through to the embedded implementation.
package inject

import (
	"context"
	"time"

	"github.com/viam-labs/keydrive/components/board"
)

// Board is an injected board.
type Board struct {
	board.Board
	GPIOPinByNameFunc    func(name string) (board.GPIOPin, error)
	PulseInputByNameFunc func(name string) (board.PulseInput, error)
	CloseFunc            func(ctx context.Context) error
}

// GPIOPinByName calls the injected GPIOPinByName or the real version.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	if b.GPIOPinByNameFunc == nil {
		return b.Board.GPIOPinByName(name)
	}
	return b.GPIOPinByNameFunc(name)
}

// PulseInputByName calls the injected PulseInputByName or the real version.
func (b *Board) PulseInputByName(name string) (board.PulseInput, error) {
	if b.PulseInputByNameFunc == nil {
		return b.Board.PulseInputByName(name)
	}
	return b.PulseInputByNameFunc(name)
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}

// GPIOPin is an injected GPIOPin.
type GPIOPin struct {
	board.GPIOPin
	SetFunc        func(ctx context.Context, high bool, extra map[string]interface{}) error
	GetFunc        func(ctx context.Context, extra map[string]interface{}) (bool, error)
	PWMFunc        func(ctx context.Context, extra map[string]interface{}) (float64, error)
	SetPWMFunc     func(ctx context.Context, dutyCyclePct float64, extra map[string]interface{}) error
	PWMFreqFunc    func(ctx context.Context, extra map[string]interface{}) (uint, error)
	SetPWMFreqFunc func(ctx context.Context, freqHz uint, extra map[string]interface{}) error
}

// Set calls the injected Set or the real version.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	if gp.SetFunc == nil {
		return gp.GPIOPin.Set(ctx, high, extra)
	}
	return gp.SetFunc(ctx, high, extra)
}

// Get calls the injected Get or the real version.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	if gp.GetFunc == nil {
		return gp.GPIOPin.Get(ctx, extra)
	}
	return gp.GetFunc(ctx, extra)
}

// PWM calls the injected PWM or the real version.
func (gp *GPIOPin) PWM(ctx context.Context, extra map[string]interface{}) (float64, error) {
	if gp.PWMFunc == nil {
		return gp.GPIOPin.PWM(ctx, extra)
	}
	return gp.PWMFunc(ctx, extra)
}

// SetPWM calls the injected SetPWM or the real version.
func (gp *GPIOPin) SetPWM(ctx context.Context, dutyCyclePct float64, extra map[string]interface{}) error {
	if gp.SetPWMFunc == nil {
		return gp.GPIOPin.SetPWM(ctx, dutyCyclePct, extra)
	}
	return gp.SetPWMFunc(ctx, dutyCyclePct, extra)
}

// PWMFreq calls the injected PWMFreq or the real version.
func (gp *GPIOPin) PWMFreq(ctx context.Context, extra map[string]interface{}) (uint, error) {
	if gp.PWMFreqFunc == nil {
		return gp.GPIOPin.PWMFreq(ctx, extra)
	}
	return gp.PWMFreqFunc(ctx, extra)
}

// SetPWMFreq calls the injected SetPWMFreq or the real version.
func (gp *GPIOPin) SetPWMFreq(ctx context.Context, freqHz uint, extra map[string]interface{}) error {
	if gp.SetPWMFreqFunc == nil {
		return gp.GPIOPin.SetPWMFreq(ctx, freqHz, extra)
	}
	return gp.SetPWMFreqFunc(ctx, freqHz, extra)
}

// PulseInput is an injected PulseInput.
type PulseInput struct {
	board.PulseInput
	PulseInFunc func(ctx context.Context, high bool, timeout time.Duration) (time.Duration, error)
}

// PulseIn calls the injected PulseIn or the real version.
func (p *PulseInput) PulseIn(ctx context.Context, high bool, timeout time.Duration) (time.Duration, error) {
	if p.PulseInFunc == nil {
		return p.PulseInput.PulseIn(ctx, high, timeout)
	}
	return p.PulseInFunc(ctx, high, timeout)
}
