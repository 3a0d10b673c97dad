package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testAppender struct {
	tb      testing.TB
	encoder zapcore.Encoder
}

// NewTestAppender returns an appender that writes through tb.Log, so each line is attributed
// to the test that produced it.
func NewTestAppender(tb testing.TB) Appender {
	cfg := newEncoderConfig()
	cfg.LineEnding = "\n"
	return &testAppender{tb: tb, encoder: zapcore.NewConsoleEncoder(cfg)}
}

func (app *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	app.tb.Helper()
	buf, err := app.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	app.tb.Log(strings.TrimSuffix(buf.String(), "\n"))
	return nil
}

func (app *testAppender) Sync() error {
	return nil
}
