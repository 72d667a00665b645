package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/viam-labs/keydrive/logging"
)

func TestWatcher(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "keydrive.json")
	write := func(contents string) {
		t.Helper()
		test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	}
	write(`{"log_level": "info"}`)

	w, err := NewWatcher(context.Background(), path, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()

	next := func() *Config {
		t.Helper()
		select {
		case cfg := <-w.Config():
			return cfg
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for config")
			return nil
		}
	}

	write(`{"log_level": "debug"}`)
	test.That(t, next().LogLevel, test.ShouldEqual, logging.DEBUG)

	// An invalid file is skipped; the next good one comes through.
	write(`{"log_level": "loud"}`)
	time.Sleep(2 * settleTime)
	write(`{"log_level": "error"}`)
	test.That(t, next().LogLevel, test.ShouldEqual, logging.ERROR)

	// Other files in the directory are ignored.
	test.That(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte(`{}`), 0o600), test.ShouldBeNil)
	select {
	case cfg := <-w.Config():
		t.Fatalf("unexpected config %+v", cfg)
	case <-time.After(2 * settleTime):
	}
}

func TestWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(context.Background(), filepath.Join(t.TempDir(), "nope", "keydrive.json"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
