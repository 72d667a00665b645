// Package base defines a differential drive base: two motors, each wired to a pair of PWM
// channels, steered by driving one channel of each pair.
package base

import (
	"context"
	"fmt"
)

// A Direction is the motion a base is asked to make.
type Direction int

// The known directions. None is the zero value and keeps every channel at 0.
const (
	None Direction = iota
	Forward
	Backward
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Outputs are the duty cycles of the four motor channels, 0 to 255.
type Outputs struct {
	LeftForward   uint8
	LeftBackward  uint8
	RightForward  uint8
	RightBackward uint8
}

// OutputsFor returns the channel duties that move in dir at duty. Turns spin in place: the two
// motors run in opposite directions. Unknown directions behave like None.
func OutputsFor(dir Direction, duty uint8) Outputs {
	switch dir {
	case Forward:
		return Outputs{LeftForward: duty, RightForward: duty}
	case Backward:
		return Outputs{LeftBackward: duty, RightBackward: duty}
	case Left:
		return Outputs{LeftBackward: duty, RightForward: duty}
	case Right:
		return Outputs{LeftForward: duty, RightBackward: duty}
	case None:
		return Outputs{}
	default:
		return Outputs{}
	}
}

// A Base actuates a differential drive.
type Base interface {
	// ApplyDrive writes the outputs for dir at duty to all four channels.
	ApplyDrive(ctx context.Context, dir Direction, duty uint8) error

	// Stop writes 0 to all four channels.
	Stop(ctx context.Context) error

	// Close stops the base and releases it.
	Close(ctx context.Context) error
}
