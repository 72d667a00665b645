package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/viam-labs/keydrive/serial"
)

func TestApp(t *testing.T) {
	prevSearch, prevOpen := serial.Search, serial.Open
	defer func() {
		serial.Search, serial.Open = prevSearch, prevOpen
	}()
	serial.Search = func(filter serial.SearchFilter) ([]string, error) {
		switch filter.Pattern {
		case "":
			return []string{"/dev/ttyACM0", "/dev/ttyS0"}, nil
		case "/dev/ttyACM*":
			return []string{"/dev/ttyACM0"}, nil
		default:
			return nil, nil
		}
	}
	var openedWith serial.Options
	serial.Open = func(devicePath string, options serial.Options) (io.ReadWriteCloser, error) {
		openedWith = options
		return nil, errors.Errorf("cannot open %s", devicePath)
	}

	out := &bytes.Buffer{}
	run := func(args ...string) error {
		app := newApp()
		app.Writer = out
		return app.Run(append([]string{"keydrive-console"}, args...))
	}
	test.That(t, run("--list"), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, "/dev/ttyACM0\n/dev/ttyS0\n")

	err := run("--baud", "115200")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot open /dev/ttyACM0")
	test.That(t, openedWith.BaudRate, test.ShouldEqual, 115200)
	test.That(t, openedWith.ReadTimeout, test.ShouldEqual, portReadTimeout)

	err = run("-p", "/dev/ttyUSB3")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot open /dev/ttyUSB3")
	test.That(t, openedWith.BaudRate, test.ShouldEqual, serial.DefaultBaudRate)

	serial.Search = func(filter serial.SearchFilter) ([]string, error) {
		return nil, nil
	}
	err = run()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no suitable serial device")
}
