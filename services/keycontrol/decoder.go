package keycontrol

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/viam-labs/keydrive/components/base"
)

// A Class is what kind of command an input byte is.
type Class int

const (
	// ClassIgnored is any byte that is not an ASCII letter or digit, e.g. line endings.
	ClassIgnored Class = iota
	// ClassDirection is one of f, b, l, r.
	ClassDirection
	// ClassSpeed is one of the digits 0 to 5.
	ClassSpeed
	// ClassToggle is x, which flips keyboard control.
	ClassToggle
	// ClassInvalid is any other letter or digit.
	ClassInvalid
)

func (c Class) String() string {
	switch c {
	case ClassIgnored:
		return "ignored"
	case ClassDirection:
		return "direction"
	case ClassSpeed:
		return "speed"
	case ClassToggle:
		return "toggle"
	case ClassInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// A Command is a classified input byte.
type Command struct {
	Byte  byte
	Class Class
	// Direction is set for ClassDirection.
	Direction base.Direction
	// Level is the speed level, 0 to MaxSpeedLevel, for ClassSpeed.
	Level int
}

// MaxSpeedLevel is the highest speed digit.
const MaxSpeedLevel = 5

// ToggleByte flips keyboard control.
const ToggleByte = 'x'

// Classify decodes one input byte. Letters are case sensitive.
func Classify(b byte) Command {
	cmd := Command{Byte: b}
	switch {
	case b == 'f':
		cmd.Class, cmd.Direction = ClassDirection, base.Forward
	case b == 'b':
		cmd.Class, cmd.Direction = ClassDirection, base.Backward
	case b == 'l':
		cmd.Class, cmd.Direction = ClassDirection, base.Left
	case b == 'r':
		cmd.Class, cmd.Direction = ClassDirection, base.Right
	case b >= '0' && b <= '0'+MaxSpeedLevel:
		cmd.Class, cmd.Level = ClassSpeed, int(b-'0')
	case b == ToggleByte:
		cmd.Class = ClassToggle
	case isAlphaNumeric(b):
		cmd.Class = ClassInvalid
	default:
		cmd.Class = ClassIgnored
	}
	return cmd
}

func isAlphaNumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// A Decoder pulls single command bytes off a link whose reads do not block, such as a serial port
// opened with a zero read timeout or a serial.Pump.
type Decoder struct {
	r   io.Reader
	buf [1]byte
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// ReceiveCommand returns the next byte, or false when none is available. A reader at EOF is
// treated as a quiet line.
func (d *Decoder) ReceiveCommand() (byte, bool, error) {
	n, err := d.r.Read(d.buf[:])
	if n > 0 {
		return d.buf[0], true, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, false, nil
	}
	return 0, false, errors.Wrap(err, "error reading command")
}
