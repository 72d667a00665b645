// Package serial opens the character link the controller is driven over and provides
// non-blocking readers for it.
package serial

import (
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	ser "go.bug.st/serial"
	"go.uber.org/multierr"
)

// SupportedBaudRates lists the rates the link may be configured with.
var SupportedBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// DefaultBaudRate is the rate the controller firmware has always used.
const DefaultBaudRate = 9600

// Options to be passed to Open().
type Options struct {
	BaudRate int
	DataBits int
	StopBits StopBits
	Parity   Parity
	// ReadTimeout bounds how long a Read waits for a byte. Zero makes reads return immediately,
	// with 0 bytes when nothing has arrived.
	ReadTimeout time.Duration
}

// Parity describes a serial port parity setting.
type Parity int

const (
	// NoParity disable parity control (default).
	NoParity Parity = iota
	// OddParity enable odd-parity check.
	OddParity
	// EvenParity enable even-parity check.
	EvenParity
	// MarkParity enable mark-parity (always 1) check.
	MarkParity
	// SpaceParity enable space-parity (always 0) check.
	SpaceParity
)

// StopBits describe a serial port stop bits setting.
type StopBits int

const (
	// OneStopBit sets 1 stop bit (default).
	OneStopBit StopBits = iota
	// OnePointFiveStopBits sets 1.5 stop bits.
	OnePointFiveStopBits
	// TwoStopBits sets 2 stop bits.
	TwoStopBits
)

// DefaultOptions returns 9600 8N1 with non-blocking reads.
func DefaultOptions() Options {
	return Options{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: OneStopBit, Parity: NoParity}
}

// Validate checks the options against what the link supports.
func (options Options) Validate() error {
	if !lo.Contains(SupportedBaudRates, options.BaudRate) {
		return errors.Errorf("unsupported baud rate %d, must be one of %v", options.BaudRate, SupportedBaudRates)
	}
	if options.DataBits < 5 || options.DataBits > 8 {
		return errors.Errorf("data bits must be between 5 and 8, got %d", options.DataBits)
	}
	if options.ReadTimeout < 0 {
		return errors.Errorf("read timeout must not be negative, got %v", options.ReadTimeout)
	}
	return nil
}

func (options Options) mode() *ser.Mode {
	return &ser.Mode{
		BaudRate: options.BaudRate,
		Parity:   ser.Parity(options.Parity),
		DataBits: options.DataBits,
		StopBits: ser.StopBits(options.StopBits),
	}
}

// Open attempts to open a serial device on the given path. It's a variable
// in case you need to override it during tests.
var Open = func(devicePath string, options Options) (io.ReadWriteCloser, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	device, err := ser.Open(devicePath, options.mode())
	if err != nil {
		return nil, errors.Wrapf(err, "error opening serial device %q", devicePath)
	}
	if err := device.SetReadTimeout(options.ReadTimeout); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "error setting read timeout"), device.Close())
	}
	return device, nil
}

// SearchFilter narrows the result of Search. An empty pattern matches every port.
type SearchFilter struct {
	// Pattern is a filepath.Match pattern applied to the port path, e.g. "/dev/ttyACM*".
	Pattern string
}

// DefaultSearchPatterns are the device paths microcontroller boards usually enumerate as.
var DefaultSearchPatterns = []string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/cu.usbmodem*", "COM*"}

// Search returns the sorted paths of the serial ports matching filter. It's a variable in case
// you need to override it during tests.
var Search = func(filter SearchFilter) ([]string, error) {
	ports, err := ser.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "error listing serial ports")
	}
	return filterPorts(ports, filter)
}

func filterPorts(ports []string, filter SearchFilter) ([]string, error) {
	if filter.Pattern == "" {
		sort.Strings(ports)
		return ports, nil
	}
	if _, err := filepath.Match(filter.Pattern, ""); err != nil {
		return nil, errors.Wrapf(err, "bad search pattern %q", filter.Pattern)
	}
	matched := lo.Filter(ports, func(port string, _ int) bool {
		ok, _ := filepath.Match(filter.Pattern, port)
		return ok
	})
	sort.Strings(matched)
	return matched, nil
}
