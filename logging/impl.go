package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	// parent supplies the level of a sublogger until SetLevel is called on it.
	parent   *impl
	levelSet atomic.Bool

	appenders []Appender
}

// entry pairs a zapcore Entry with the structured fields of a "w" call.
type entry struct {
	zapcore.Entry
	fields []zapcore.Field
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
	imp.levelSet.Store(true)
}

func (imp *impl) GetLevel() Level {
	if imp.parent != nil && !imp.levelSet.Load() {
		return imp.parent.GetLevel()
	}
	return imp.level.Get()
}

func (imp *impl) Level() zapcore.Level {
	return imp.GetLevel().AsZap()
}

// Sublogger shares appenders with its parent and follows the parent's level until it is given
// one of its own.
func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = imp.name + "." + subname
	}

	return &impl{
		name:      newName,
		level:     NewAtomicLevelAt(imp.GetLevel()),
		inUTC:     imp.inUTC,
		parent:    imp,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Combine(err, appender.Sync())
	}
	return err
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.AsZap().Desugar()
}

func (imp *impl) Named(name string) *zap.SugaredLogger {
	return imp.AsZap().Named(name)
}

func (imp *impl) With(args ...interface{}) *zap.SugaredLogger {
	return imp.AsZap().With(args...)
}

func (imp *impl) WithOptions(opts ...zap.Option) *zap.SugaredLogger {
	return imp.AsZap().WithOptions(opts...)
}

// AsZap downconverts to a zap SugaredLogger. Appenders that are also `zapcore.Core`s (e.g. the
// observer used by tests) are teed in so nothing written through zap is lost.
func (imp *impl) AsZap() *zap.SugaredLogger {
	config := NewZapLoggerConfig()
	config.Level = GlobalLogLevel
	ret := zap.Must(config.Build()).Sugar().Named(imp.name)

	for _, appender := range imp.appenders {
		core, ok := appender.(zapcore.Core)
		if !ok {
			continue
		}
		ret = ret.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}
	return ret
}

func (imp *impl) enabled(level Level) bool {
	if GlobalLogLevel.Level() == zapcore.DebugLevel {
		return true
	}
	return level >= imp.GetLevel()
}

// newEntry must be called directly by the exported log method so getCaller's frame count holds.
func (imp *impl) newEntry(level Level, msg string) *entry {
	ret := &entry{}
	ret.Time = time.Now()
	if imp.inUTC {
		ret.Time = ret.Time.UTC()
	}
	ret.LoggerName = imp.name
	ret.Caller = getCaller()
	ret.Level = level.AsZap()
	ret.Message = msg
	return ret
}

func (imp *impl) write(e *entry) {
	for _, appender := range imp.appenders {
		if err := appender.Write(e.Entry, e.fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

// withFields turns `keysAndValues` into zap fields. Odd elements are keys, the element following
// each key is its value.
func (e *entry) withFields(keysAndValues []interface{}) *entry {
	e.fields = make([]zapcore.Field, 0, len(keysAndValues)/2)
	for idx := 0; idx < len(keysAndValues); idx += 2 {
		var key string
		if stringer, ok := keysAndValues[idx].(fmt.Stringer); ok {
			key = stringer.String()
		} else {
			key = fmt.Sprintf("%v", keysAndValues[idx])
		}

		if idx+1 < len(keysAndValues) {
			e.fields = append(e.fields, zap.Any(key, keysAndValues[idx+1]))
		} else {
			e.fields = append(e.fields, zap.Any(key, errors.New("unpaired log key")))
		}
	}
	return e
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.newEntry(DEBUG, fmt.Sprint(args...)))
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.newEntry(DEBUG, fmt.Sprintf(template, args...)))
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.newEntry(DEBUG, msg).withFields(keysAndValues))
	}
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.newEntry(DEBUG, fmt.Sprint(args...)))
	}
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.newEntry(DEBUG, fmt.Sprintf(template, args...)))
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.newEntry(DEBUG, msg).withFields(keysAndValues))
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.newEntry(INFO, fmt.Sprint(args...)))
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.newEntry(INFO, fmt.Sprintf(template, args...)))
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.newEntry(INFO, msg).withFields(keysAndValues))
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.newEntry(WARN, fmt.Sprint(args...)))
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.newEntry(WARN, fmt.Sprintf(template, args...)))
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.newEntry(WARN, msg).withFields(keysAndValues))
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.newEntry(ERROR, fmt.Sprint(args...)))
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.newEntry(ERROR, fmt.Sprintf(template, args...)))
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.newEntry(ERROR, msg).withFields(keysAndValues))
	}
}

// The Fatal family logs at error level then exits the process.
func (imp *impl) Fatal(args ...interface{}) {
	imp.write(imp.newEntry(ERROR, fmt.Sprint(args...)))
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.write(imp.newEntry(ERROR, fmt.Sprintf(template, args...)))
	os.Exit(1)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.write(imp.newEntry(ERROR, msg).withFields(keysAndValues))
	os.Exit(1)
}

// getCaller reports the user code that called an exported log method. The frames skipped are
// getCaller, newEntry and the log method itself.
func getCaller() zapcore.EntryCaller {
	const skipToLogCaller = 3
	var caller zapcore.EntryCaller
	var ok bool
	caller.PC, caller.File, caller.Line, ok = runtime.Caller(skipToLogCaller)
	if !ok {
		return caller
	}
	caller.Defined = true
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
