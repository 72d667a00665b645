// Package board defines the pin-level hardware boundary: PWM capable outputs, digital IO and
// pulse-width inputs, plus the registry of board models that provide them.
package board

import (
	"context"

	"github.com/pkg/errors"
)

// ErrPulseTimeout is returned by PulseInput.PulseIn when no complete pulse was seen in time.
var ErrPulseTimeout = errors.New("timed out waiting for pulse")

// A Board exposes the pins of one piece of hardware by name.
type Board interface {
	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// PulseInputByName returns a pulse-width input by name.
	PulseInputByName(name string) (PulseInput, error)

	// Close releases the pins. Outputs are left low.
	Close(ctx context.Context) error
}
