// Package main is an operator console for a keydrive controller. It sends every key press down the
// serial link as one byte and prints the controller's status lines as they come back.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/viam-labs/keydrive/logging"
	"github.com/viam-labs/keydrive/serial"
)

const (
	flagPort  = "port"
	flagBaud  = "baud"
	flagList  = "list"
	flagDebug = "debug"

	// portReadTimeout lets the status reader notice the console shutting down.
	portReadTimeout = 100 * time.Millisecond
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "keydrive-console",
		Usage: "drive a keydrive controller from the keyboard",
		UsageText: "keydrive-console [--port PATH] [--baud RATE]\n\n" +
			"   f b l r: direction, 0-5: speed, x: toggle keyboard control, ctrl-c: quit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagPort,
				Aliases: []string{"p"},
				Usage:   "serial device of the controller; the first one found when unset",
			},
			&cli.IntFlag{
				Name:    flagBaud,
				Aliases: []string{"b"},
				Value:   serial.DefaultBaudRate,
				Usage:   "baud rate of the link",
			},
			&cli.BoolFlag{
				Name:  flagList,
				Usage: "list serial devices and exit",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: consoleAction,
	}
}

func consoleAction(c *cli.Context) (err error) {
	logger := logging.NewBlankLogger("console")
	if c.Bool(flagDebug) {
		logger = logging.NewStderrLogger("console")
		logger.SetLevel(logging.DEBUG)
	}

	if c.Bool(flagList) {
		ports, err := serial.Search(serial.SearchFilter{})
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(c.App.Writer, p)
		}
		return nil
	}

	path := c.String(flagPort)
	if path == "" {
		path, err = findPort()
		if err != nil {
			return err
		}
	}
	opts := serial.DefaultOptions()
	opts.BaudRate = c.Int(flagBaud)
	opts.ReadTimeout = portReadTimeout
	port, err := serial.Open(path, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, port.Close())
	}()
	logger.Debugw("connected", "port", path, "baud_rate", opts.BaudRate)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return errors.Wrap(err, "error switching terminal to raw mode")
		}
		defer func() {
			err = multierr.Combine(err, term.Restore(fd, oldState))
		}()
	}
	fmt.Fprintf(c.App.Writer, "connected to %s, ctrl-c to quit\r\n", path)
	return runConsole(ctx, port, os.Stdin, c.App.Writer, logger)
}

func findPort() (string, error) {
	for _, pattern := range serial.DefaultSearchPatterns {
		ports, err := serial.Search(serial.SearchFilter{Pattern: pattern})
		if err != nil {
			return "", err
		}
		if len(ports) != 0 {
			return ports[0], nil
		}
	}
	return "", errors.New("no suitable serial device found, use --port")
}
