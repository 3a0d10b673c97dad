package logging

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip is the number of frames between runtime.Caller in emit and the caller of a
// Logger method.
const callerSkip = 3

type logger struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

func newLogger(name string, level Level, inUTC bool, appenders ...Appender) *logger {
	return &logger{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, appenders: appenders}
}

func (l *logger) AddAppender(appender Appender) {
	l.appenders = append(l.appenders, appender)
}

func (l *logger) SetLevel(level Level) {
	l.level.Set(level)
}

func (l *logger) GetLevel() Level {
	return l.level.Get()
}

// Sublogger shares the appenders of l but gets its own level, starting at l's current one.
func (l *logger) Sublogger(subname string) Logger {
	name := subname
	if l.name != "" {
		name = l.name + "." + subname
	}
	return newLogger(name, l.level.Get(), l.inUTC, l.appenders...)
}

func (l *logger) Sync() error {
	var err error
	for _, appender := range l.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (l *logger) AsZap() *zap.SugaredLogger {
	cores := make([]zapcore.Core, 0, len(l.appenders))
	for _, appender := range l.appenders {
		switch app := appender.(type) {
		case zapcore.Core:
			cores = append(cores, app)
		case ConsoleAppender:
			cores = append(cores, zapcore.NewCore(app.encoder, zapcore.AddSync(app.Writer), l.level.Get().AsZap()))
		}
	}
	return zap.New(zapcore.NewTee(cores...)).Sugar().Named(l.name)
}

// emit builds an entry for level and hands it to every appender. Appender failures go to
// stderr since there is nowhere else to report them.
func (l *logger) emit(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: l.name,
		Message:    msg,
	}
	if l.inUTC {
		entry.Time = entry.Time.UTC()
	}
	if pc, file, line, ok := runtime.Caller(callerSkip); ok {
		entry.Caller = zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
		if fn := runtime.FuncForPC(pc); fn != nil {
			entry.Caller.Function = fn.Name()
		}
	}
	for _, appender := range l.appenders {
		if err := appender.Write(entry, fields); err != nil {
			//nolint:errcheck
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (l *logger) print(level Level, args []interface{}) {
	if level >= l.level.Get() {
		l.emit(level, fmt.Sprint(args...), nil)
	}
}

func (l *logger) printf(level Level, template string, args []interface{}) {
	if level >= l.level.Get() {
		l.emit(level, fmt.Sprintf(template, args...), nil)
	}
}

func (l *logger) printw(level Level, msg string, keysAndValues []interface{}) {
	if level >= l.level.Get() {
		l.emit(level, msg, toFields(keysAndValues))
	}
}

// toFields pairs up keys and values. A trailing key without a value is logged under
// "!BADKEY" the way zap's sugared logger reports it.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any("!BADKEY", keysAndValues[i]))
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = strings.TrimSpace(fmt.Sprint(keysAndValues[i]))
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (l *logger) Debug(args ...interface{})                   { l.print(DEBUG, args) }
func (l *logger) Debugf(template string, args ...interface{}) { l.printf(DEBUG, template, args) }
func (l *logger) Debugw(msg string, kv ...interface{})        { l.printw(DEBUG, msg, kv) }
func (l *logger) Info(args ...interface{})                    { l.print(INFO, args) }
func (l *logger) Infof(template string, args ...interface{})  { l.printf(INFO, template, args) }
func (l *logger) Infow(msg string, kv ...interface{})         { l.printw(INFO, msg, kv) }
func (l *logger) Warn(args ...interface{})                    { l.print(WARN, args) }
func (l *logger) Warnf(template string, args ...interface{})  { l.printf(WARN, template, args) }
func (l *logger) Warnw(msg string, kv ...interface{})         { l.printw(WARN, msg, kv) }
func (l *logger) Error(args ...interface{})                   { l.print(ERROR, args) }
func (l *logger) Errorf(template string, args ...interface{}) { l.printf(ERROR, template, args) }
func (l *logger) Errorw(msg string, kv ...interface{})        { l.printw(ERROR, msg, kv) }
