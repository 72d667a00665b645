package board

import (
	"context"
	"time"
)

// A GPIOPin represents an individual GPIO pin on a board.
type GPIOPin interface {
	// Set sets the pin to either low or high.
	Set(ctx context.Context, high bool, extra map[string]interface{}) error

	// Get gets the high/low state of the pin.
	Get(ctx context.Context, extra map[string]interface{}) (bool, error)

	// PWM gets the pin's given duty cycle.
	PWM(ctx context.Context, extra map[string]interface{}) (float64, error)

	// SetPWM sets the pin to the given duty cycle, a fraction in [0, 1].
	SetPWM(ctx context.Context, dutyCyclePct float64, extra map[string]interface{}) error

	// PWMFreq gets the PWM frequency of the pin.
	PWMFreq(ctx context.Context, extra map[string]interface{}) (uint, error)

	// SetPWMFreq sets the given pin to the given PWM frequency. 0 will use the board's default PWM frequency.
	SetPWMFreq(ctx context.Context, freqHz uint, extra map[string]interface{}) error
}

// A PulseInput measures the width of a single pulse on an input pin.
type PulseInput interface {
	// PulseIn waits for the pin to reach the given level, then returns how long it stays there.
	// The whole measurement, including the wait for the pulse to start, is bounded by timeout;
	// ErrPulseTimeout is returned when it expires.
	PulseIn(ctx context.Context, high bool, timeout time.Duration) (time.Duration, error)
}
