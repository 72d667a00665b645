package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/viam-labs/keydrive/logging"
	"github.com/viam-labs/keydrive/serial"
	"github.com/viam-labs/keydrive/services/keycontrol"
)

func TestDefault(t *testing.T) {
	conf := Default()
	test.That(t, conf.Serial.BaudRate, test.ShouldEqual, serial.DefaultBaudRate)
	test.That(t, conf.Board.Model, test.ShouldEqual, DefaultBoardModel)
	test.That(t, []string{conf.Base.LeftForward, conf.Base.LeftBackward, conf.Base.RightForward, conf.Base.RightBackward},
		test.ShouldResemble, []string{"9", "3", "11", "10"})
	test.That(t, conf.Proximity.TriggerPin, test.ShouldEqual, "6")
	test.That(t, conf.Proximity.EchoPin, test.ShouldEqual, "5")
	test.That(t, conf.Proximity.WarningDistanceCm, test.ShouldEqual, 30.0)
	test.That(t, conf.LogLevel, test.ShouldEqual, logging.INFO)

	opts, err := conf.Control.Options()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts, test.ShouldResemble, keycontrol.Options{PollInterval: keycontrol.DefaultPollInterval})
}

func TestFromReaderValidate(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	_, err := FromReader(ctx, "somepath", strings.NewReader(""), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "EOF")

	_, err = FromReader(ctx, "somepath", strings.NewReader(`{"serial": 1}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unmarshal")

	_, err = FromReader(ctx, "somepath", strings.NewReader(`{"motors": {}}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown field")

	conf, err := FromReader(ctx, "somepath", strings.NewReader(`{}`), logger)
	test.That(t, err, test.ShouldBeNil)
	expected := Default()
	expected.ConfigFilePath = "somepath"
	test.That(t, conf, test.ShouldResemble, expected)

	for _, tc := range []struct {
		in       string
		contains string
	}{
		{`{"serial": {"baud_rate": 1234}}`, `error validating "serial"`},
		{`{"board": {"model": "abacus"}}`, `unknown board model "abacus"`},
		{`{"board": {"model": "fake", "attributes": {"fail_new": true}}}`, "whoops"},
		{`{"board": {"model": "fake", "attributes": {"pins": 3}}}`, `error validating "board"`},
		{`{"base": {"left_forward": "3"}}`, `error validating "base"`},
		{`{"proximity": {"trigger_pin": "5"}}`, `error validating "proximity"`},
		{`{"proximity": {"echo_pin": "9"}}`, `pin "9" is already used by the base`},
		{`{"proximity": {"warning_distance_cm": -1}}`, "must not be negative"},
		{`{"control": {"poll_interval": "soon"}}`, "invalid poll_interval"},
		{`{"control": {"poll_interval": "-1s"}}`, "poll_interval must be positive"},
		{`{"log_level": "loud"}`, "unknown log level"},
	} {
		_, err := FromReader(ctx, "somepath", strings.NewReader(tc.in), logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
	}

	// With the range finder off its pins may be shared.
	conf, err = FromReader(ctx, "somepath", strings.NewReader(`{"proximity": {"disabled": true, "echo_pin": "9"}}`), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Proximity.Disabled, test.ShouldBeTrue)
}

func TestPollInterval(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	for _, tc := range []struct {
		in       string
		expected time.Duration
	}{
		{`"25ms"`, 25 * time.Millisecond},
		{`"1s"`, time.Second},
		{`5000000`, 5 * time.Millisecond},
	} {
		conf, err := FromReader(ctx, "somepath",
			strings.NewReader(`{"control": {"poll_interval": `+tc.in+`, "legacy_duty_table": true}}`), logger)
		test.That(t, err, test.ShouldBeNil)
		opts, err := conf.Control.Options()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, opts.PollInterval, test.ShouldEqual, tc.expected)
		test.That(t, opts.LegacyDutyTable, test.ShouldBeTrue)
	}
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	_, err := Read(ctx, filepath.Join(t.TempDir(), "missing.json"), logger)
	test.That(t, err, test.ShouldNotBeNil)

	t.Setenv("KEYDRIVE_PORT", "/dev/ttyACM7")
	path := filepath.Join(t.TempDir(), "keydrive.json")
	contents := `{
		"serial": {"port": "${KEYDRIVE_PORT}", "baud_rate": 115200},
		"board": {"model": "fake", "attributes": {"echo_us": [1000, 0]}},
		"control": {"start_disabled": true},
		"log_level": "debug"
	}`
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)

	conf, err := Read(ctx, path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, conf.Serial.Port, test.ShouldEqual, "/dev/ttyACM7")
	test.That(t, conf.Serial.Options().BaudRate, test.ShouldEqual, 115200)
	test.That(t, conf.Board.Model, test.ShouldEqual, "fake")
	test.That(t, conf.Board.Attributes, test.ShouldContainKey, "echo_us")
	test.That(t, conf.Control.StartDisabled, test.ShouldBeTrue)
	test.That(t, conf.LogLevel, test.ShouldEqual, logging.DEBUG)
}
