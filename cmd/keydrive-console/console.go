package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/logging"
	"github.com/viam-labs/keydrive/services/keycontrol"
	"github.com/viam-labs/keydrive/services/proximity"
)

// Keys that end the console. In raw mode the terminal hands them over instead of signalling.
const (
	keyInterrupt = 0x03
	keyEOF       = 0x04
)

// runConsole forwards keys from in to link until ctx is done, in ends or a quit key is pressed,
// and prints the status lines arriving on link to out meanwhile.
func runConsole(ctx context.Context, link io.ReadWriter, in io.Reader, out io.Writer, logger logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var activeBackgroundWorkers sync.WaitGroup
	activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		copyStatus(ctx, link, &statusPrinter{out: out}, logger)
	}, activeBackgroundWorkers.Done)

	keys := make(chan error, 1)
	go func() {
		keys <- sendKeys(in, link)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-keys:
	}
	cancel()
	activeBackgroundWorkers.Wait()
	return err
}

// sendKeys writes every byte read from in to link, one write per byte.
func sendKeys(in io.Reader, link io.Writer) error {
	var buf [1]byte
	for {
		n, err := in.Read(buf[:])
		if n > 0 {
			if buf[0] == keyInterrupt || buf[0] == keyEOF {
				return nil
			}
			if _, err := link.Write(buf[:]); err != nil {
				return errors.Wrap(err, "error sending key")
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "error reading keys")
		}
	}
}

// copyStatus reads link until ctx is done or the link fails. Reads on link must time out so that
// cancellation is noticed.
func copyStatus(ctx context.Context, link io.Reader, w io.Writer, logger logging.Logger) {
	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := link.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				logger.Debugw("error printing status", "error", err)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Errorw("error reading from controller", "error", err)
			}
			return
		}
	}
}

var (
	warningColor = color.New(color.FgRed, color.Bold)
	problemColor = color.New(color.FgYellow)
	modeColor    = color.New(color.FgCyan)
	clearColor   = color.New(color.FgGreen)
)

// lineColor picks the highlight for a status line, nil for none.
func lineColor(line string) *color.Color {
	switch {
	case strings.HasPrefix(line, "!!!"):
		return warningColor
	case line == proximity.ClearMessage:
		return clearColor
	case line == keycontrol.InvalidInputMsg, strings.HasPrefix(line, "Drive error"):
		return problemColor
	case line == keycontrol.EnabledMsg, line == keycontrol.ExitedMsg:
		return modeColor
	default:
		return nil
	}
}

// A statusPrinter splits the byte stream from the controller into lines and prints them with
// "\r\n" endings, which a raw mode terminal needs.
type statusPrinter struct {
	out     io.Writer
	partial []byte
}

func (p *statusPrinter) Write(data []byte) (int, error) {
	p.partial = append(p.partial, data...)
	for {
		i := bytes.IndexByte(p.partial, '\n')
		if i < 0 {
			return len(data), nil
		}
		line := strings.TrimRight(string(p.partial[:i]), "\r")
		p.partial = p.partial[i+1:]
		if err := p.printLine(line); err != nil {
			return len(data), err
		}
	}
}

func (p *statusPrinter) printLine(line string) error {
	var err error
	if c := lineColor(line); c != nil {
		_, err = c.Fprint(p.out, line)
	} else {
		_, err = io.WriteString(p.out, line)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(p.out, "\r\n")
	return err
}
