package periph

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"github.com/viam-labs/keydrive/components/board"
	"github.com/viam-labs/keydrive/logging"
)

// noPWMPin has no hardware PWM, like most header pins.
type noPWMPin struct {
	*gpiotest.Pin
}

func (p *noPWMPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("not supported")
}

func withPins(t *testing.T, pins map[string]gpio.PinIO) {
	t.Helper()
	prev := lookupPin
	lookupPin = func(name string) gpio.PinIO {
		if p, ok := pins[name]; ok {
			return p
		}
		return nil
	}
	t.Cleanup(func() { lookupPin = prev })
}

func TestHardwarePWM(t *testing.T) {
	ctx := context.Background()
	p9 := &gpiotest.Pin{N: "9", Num: 9}
	withPins(t, map[string]gpio.PinIO{"9": p9})
	b := newBoard(Config{}, logging.NewTestLogger(t))

	_, err := b.GPIOPinByName("13")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no global pin")

	pin, err := b.GPIOPinByName("9")
	test.That(t, err, test.ShouldBeNil)
	freq, err := pin.PWMFreq(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, freq, test.ShouldEqual, defaultPWMFreqHz)

	test.That(t, pin.SetPWM(ctx, 1.5, nil), test.ShouldNotBeNil)
	test.That(t, pin.SetPWM(ctx, 0.5, nil), test.ShouldBeNil)
	test.That(t, p9.D, test.ShouldEqual, gpio.DutyHalf)
	test.That(t, p9.F, test.ShouldEqual, defaultPWMFreqHz*physic.Hertz)
	duty, err := pin.PWM(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, duty, test.ShouldAlmostEqual, 0.5, 0.001)

	test.That(t, pin.SetPWMFreq(ctx, 1000, nil), test.ShouldBeNil)
	test.That(t, p9.F, test.ShouldEqual, 1000*physic.Hertz)

	test.That(t, pin.SetPWM(ctx, 0, nil), test.ShouldBeNil)
	test.That(t, p9.Read(), test.ShouldEqual, gpio.Low)

	test.That(t, pin.Set(ctx, true, nil), test.ShouldBeNil)
	high, err := pin.Get(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, p9.Read(), test.ShouldEqual, gpio.Low)
}

func TestSoftwarePWM(t *testing.T) {
	ctx := context.Background()
	p3 := &noPWMPin{&gpiotest.Pin{N: "3", Num: 3}}
	withPins(t, map[string]gpio.PinIO{"3": p3})
	b := newBoard(Config{DefaultPWMFreqHz: 200}, logging.NewTestLogger(t))

	pin, err := b.GPIOPinByName("3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pin.SetPWM(ctx, 0.5, nil), test.ShouldBeNil)

	sawHigh, sawLow := false, false
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		if p3.Read() == gpio.High {
			sawHigh = true
		} else {
			sawLow = true
		}
		test.That(tb, sawHigh && sawLow, test.ShouldBeTrue)
	})

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, p3.Read(), test.ShouldEqual, gpio.Low)
}

func TestSoftwarePWMQuickRestart(t *testing.T) {
	ctx := context.Background()
	p3 := &noPWMPin{&gpiotest.Pin{N: "3", Num: 3}}
	withPins(t, map[string]gpio.PinIO{"3": p3})
	b := newBoard(Config{DefaultPWMFreqHz: 20}, logging.NewTestLogger(t))

	pin, err := b.GPIOPinByName("3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pin.SetPWM(ctx, 0.5, nil), test.ShouldBeNil)
	test.That(t, b.softLoops.Load(), test.ShouldEqual, int32(1))

	// off and on again well within one period
	test.That(t, pin.SetPWM(ctx, 0, nil), test.ShouldBeNil)
	test.That(t, pin.SetPWM(ctx, 0.8, nil), test.ShouldBeNil)
	test.That(t, pin.SetPWM(ctx, 0, nil), test.ShouldBeNil)
	test.That(t, pin.SetPWM(ctx, 0.6, nil), test.ShouldBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, b.softLoops.Load(), test.ShouldEqual, int32(1))
	})
	// every stale loop has had a full period to wake up
	time.Sleep(100 * time.Millisecond)
	test.That(t, b.softLoops.Load(), test.ShouldEqual, int32(1))
	duty, err := pin.PWM(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, duty, test.ShouldAlmostEqual, 0.6, 0.001)

	test.That(t, pin.Set(ctx, false, nil), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, b.softLoops.Load(), test.ShouldEqual, int32(0))
	})
	test.That(t, b.Close(ctx), test.ShouldBeNil)
}

func TestPulseIn(t *testing.T) {
	ctx := context.Background()
	echo := &gpiotest.Pin{N: "5", Num: 5, EdgesChan: make(chan gpio.Level, 2)}
	withPins(t, map[string]gpio.PinIO{"5": echo})
	b := newBoard(Config{}, logging.NewTestLogger(t))

	in, err := b.PulseInputByName("5")
	test.That(t, err, test.ShouldBeNil)

	// No pulse at all.
	_, err = in.PulseIn(ctx, true, 5*time.Millisecond)
	test.That(t, errors.Is(err, board.ErrPulseTimeout), test.ShouldBeTrue)

	echo.EdgesChan <- gpio.High
	echo.EdgesChan <- gpio.Low
	width, err := in.PulseIn(ctx, true, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, width, test.ShouldBeGreaterThanOrEqualTo, time.Duration(0))
	test.That(t, width, test.ShouldBeLessThan, time.Second)

	// A rising edge that never falls.
	echo.EdgesChan <- gpio.High
	_, err = in.PulseIn(ctx, true, 5*time.Millisecond)
	test.That(t, errors.Is(err, board.ErrPulseTimeout), test.ShouldBeTrue)

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = in.PulseIn(cancelCtx, true, time.Second)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	test.That(t, b.Close(ctx), test.ShouldBeNil)
}
