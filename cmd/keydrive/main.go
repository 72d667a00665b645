// Package main runs the keyboard drive controller: it reads single character commands off a
// serial link and drives the motors, warning when something comes within range ahead.
package main

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/components/base/wheeled"
	"github.com/viam-labs/keydrive/components/board"
	"github.com/viam-labs/keydrive/components/board/fake"
	"github.com/viam-labs/keydrive/components/sensor/ultrasonic"
	"github.com/viam-labs/keydrive/config"
	"github.com/viam-labs/keydrive/logging"
	"github.com/viam-labs/keydrive/serial"
	"github.com/viam-labs/keydrive/services/keycontrol"
	"github.com/viam-labs/keydrive/services/proximity"
)

var logger = logging.NewStderrLogger("keydrive")

// stdin and stdout carry the command stream in simulation.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,usage=config file"`
	Debug      bool   `flag:"debug,usage=enable debug logging"`
	Sim        bool   `flag:"sim,usage=use a fake board and read commands from stdin"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		cfg, err = config.Read(ctx, argsParsed.ConfigFile, logger)
		if err != nil {
			return err
		}
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
		ctx = logging.EnableDebugMode(ctx, "")
	} else {
		logger.SetLevel(cfg.LogLevel)
		if argsParsed.ConfigFile != "" {
			stop, watchErr := followLogLevel(ctx, argsParsed.ConfigFile, logger)
			if watchErr != nil {
				return watchErr
			}
			defer func() {
				err = multierr.Combine(err, stop())
			}()
		}
	}

	if argsParsed.Sim {
		if cfg.Board.Model != fake.Model {
			cfg.Board.Model = fake.Model
			cfg.Board.Attributes = nil
		}
		pump := serial.NewPump(stdin, 64)
		defer func() {
			err = multierr.Combine(err, pump.Close())
		}()
		// the run ends with the input, once every command on it has been handled
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		utils.PanicCapturingGo(func() {
			select {
			case <-ctx.Done():
			case <-pump.Done():
				logger.Infow("end of input", "error", pump.Err())
				cancel()
			}
		})
		return run(ctx, cfg, pump, stdout, logger)
	}

	port, err := openPort(cfg.Serial, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, port.Close())
	}()
	return run(ctx, cfg, port, port, logger)
}

// followLogLevel applies log_level changes made to the config file while running. Other changes
// take effect on restart.
func followLogLevel(ctx context.Context, path string, logger logging.Logger) (func() error, error) {
	watcher, err := config.NewWatcher(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	var activeBackgroundWorkers sync.WaitGroup
	activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-cancelCtx.Done():
				return
			case cfg, ok := <-watcher.Config():
				if !ok {
					return
				}
				if cfg.LogLevel != logger.GetLevel() {
					logger.Infow("config changed, applying log level", "log_level", cfg.LogLevel)
					logger.SetLevel(cfg.LogLevel)
				}
			}
		}
	}, activeBackgroundWorkers.Done)

	return func() error {
		cancel()
		err := watcher.Close()
		activeBackgroundWorkers.Wait()
		return err
	}, nil
}

// openPort opens the configured port, or the first likely looking one when none is configured.
func openPort(conf config.SerialConfig, logger logging.Logger) (io.ReadWriteCloser, error) {
	path := conf.Port
	if path == "" {
		for _, pattern := range serial.DefaultSearchPatterns {
			ports, err := serial.Search(serial.SearchFilter{Pattern: pattern})
			if err != nil {
				return nil, err
			}
			if len(ports) != 0 {
				path = ports[0]
				break
			}
		}
		if path == "" {
			return nil, errors.New("no suitable serial port found, set serial.port")
		}
		logger.Infow("no serial port configured, using first found", "port", path)
	}
	return serial.Open(path, conf.Options())
}

// run brings up the hardware and runs the control loop until ctx is done. Commands are read from
// r and status lines written to w.
func run(ctx context.Context, cfg *config.Config, r io.Reader, w io.Writer, logger logging.Logger) (err error) {
	reporter := keycontrol.NewReporter(w, logger.Sublogger("status"))
	reporter.Report(keycontrol.BannerRule)
	reporter.Report(keycontrol.InitialisingMsg)

	b, err := board.NewFromConfig(ctx, cfg.Board, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, b.Close(ctx))
	}()

	wb, err := wheeled.New(ctx, b, cfg.Base, logger.Sublogger("base"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, wb.Close(ctx))
	}()

	var monitor *proximity.Monitor
	if cfg.Proximity.Disabled {
		logger.Info("proximity monitor disabled")
	} else {
		sensor, err := ultrasonic.NewSensor(ctx, b, cfg.Proximity.Config, logger.Sublogger("ultrasonic"))
		if err != nil {
			return err
		}
		monitor = proximity.NewMonitor(sensor, cfg.Proximity.WarningDistanceCm, logger.Sublogger("proximity"))
	}

	opts, err := cfg.Control.Options()
	if err != nil {
		return err
	}
	controller := keycontrol.NewController(
		keycontrol.NewDecoder(r), reporter, wb, monitor, opts, logger.Sublogger("keycontrol"))

	reporter.Report(keycontrol.InitCompleteMsg)
	reporter.Report(keycontrol.BannerRule)
	utils.ContextMainReadyFunc(ctx)()
	return controller.Run(ctx)
}
