package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/viam-labs/keydrive/logging"
	"github.com/viam-labs/keydrive/services/keycontrol"
	"github.com/viam-labs/keydrive/services/proximity"
	"github.com/viam-labs/keydrive/testutils/inject"
)

func withColor(t *testing.T, enabled bool) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = !enabled
	t.Cleanup(func() { color.NoColor = prev })
}

func TestLineColor(t *testing.T) {
	test.That(t, lineColor(proximity.WarningMessage(30)), test.ShouldEqual, warningColor)
	test.That(t, lineColor(proximity.ClearMessage), test.ShouldEqual, clearColor)
	test.That(t, lineColor(keycontrol.InvalidInputMsg), test.ShouldEqual, problemColor)
	test.That(t, lineColor("Drive error: stuck"), test.ShouldEqual, problemColor)
	test.That(t, lineColor(keycontrol.EnabledMsg), test.ShouldEqual, modeColor)
	test.That(t, lineColor(keycontrol.ExitedMsg), test.ShouldEqual, modeColor)
	test.That(t, lineColor("Forwards"), test.ShouldBeNil)
	test.That(t, lineColor("Speed = 10%"), test.ShouldBeNil)
}

func TestStatusPrinter(t *testing.T) {
	withColor(t, false)
	out := &bytes.Buffer{}
	p := &statusPrinter{out: out}

	for _, chunk := range []string{"Forw", "ards\r\nSpe", "ed = 10%\n", "Le"} {
		n, err := p.Write([]byte(chunk))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, len(chunk))
	}
	test.That(t, out.String(), test.ShouldEqual, "Forwards\r\nSpeed = 10%\r\n")

	withColor(t, true)
	out.Reset()
	p = &statusPrinter{out: out}
	_, err := p.Write([]byte(proximity.WarningMessage(30) + "\r\nRight\r\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "\x1b[")
	test.That(t, out.String(), test.ShouldContainSubstring, proximity.WarningMessage(30))
	test.That(t, out.String(), test.ShouldEndWith, "\r\nRight\r\n")
}

func TestSendKeys(t *testing.T) {
	sent := &bytes.Buffer{}
	test.That(t, sendKeys(strings.NewReader("f3"), sent), test.ShouldBeNil)
	test.That(t, sent.String(), test.ShouldEqual, "f3")

	sent.Reset()
	test.That(t, sendKeys(strings.NewReader("b\x04l"), sent), test.ShouldBeNil)
	test.That(t, sent.String(), test.ShouldEqual, "b")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

func TestRunConsole(t *testing.T) {
	withColor(t, false)
	logger := logging.NewTestLogger(t)

	var mu sync.Mutex
	var sent []byte
	replies := []byte{}
	link := &inject.ReadWriteCloser{
		WriteFunc: func(p []byte) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, p...)
			if p[0] == 'f' {
				replies = append(replies, "Forwards\r\n"...)
			}
			return len(p), nil
		},
		ReadFunc: func(p []byte) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			n := copy(p, replies)
			replies = replies[n:]
			return n, nil
		},
	}
	keysR, keysW := io.Pipe()
	out := &lockedBuffer{}

	done := make(chan error, 1)
	go func() {
		done <- runConsole(context.Background(), link, keysR, out, logger)
	}()

	_, err := keysW.Write([]byte("f"))
	test.That(t, err, test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, out.String(), test.ShouldEqual, "Forwards\r\n")
	})

	_, err = keysW.Write([]byte{keyInterrupt})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, <-done, test.ShouldBeNil)

	mu.Lock()
	defer mu.Unlock()
	test.That(t, string(sent), test.ShouldEqual, "f")
}

func TestRunConsoleCancel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	link := &inject.ReadWriteCloser{
		ReadFunc: func(p []byte) (int, error) {
			return 0, nil
		},
	}
	keysR, keysW := io.Pipe()
	defer keysW.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runConsole(ctx, link, keysR, io.Discard, logger)
	test.That(t, err, test.ShouldBeNil)
}
