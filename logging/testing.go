package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that writes through `tb.Log`, so each line is attributed
// to the running test even when tests run in parallel. Lines use the local timezone.
//
// `tb.Helper` is called on the write path so Go reports the line of the original log call rather
// than this file.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

// Write outputs the log entry to the underlying test object `Log` method.
func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	toPrint := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)

	var err error
	if len(fields) > 0 {
		// Encode with an empty Entry so only the fields are rendered, in call order.
		jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, encodeErr := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
		if encodeErr == nil {
			toPrint = append(toPrint, string(buf.Bytes()))
		}
		err = encodeErr
	}
	tapp.tb.Log(strings.Join(toPrint, "\t"))
	return err
}

// Sync is a no-op.
func (tapp *testAppender) Sync() error {
	return nil
}
