package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimestampLayout is RFC 3339 UTC with fixed microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

var (
	loggerOnce sync.Once
	rootLogger *zap.Logger
	current    atomic.Pointer[zap.Logger]

	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// severities maps zap levels to Cloud Logging severity names.
var severities = map[zapcore.Level]string{
	zapcore.DebugLevel:  "DEBUG",
	zapcore.InfoLevel:   "INFO",
	zapcore.WarnLevel:   "WARNING",
	zapcore.ErrorLevel:  "ERROR",
	zapcore.DPanicLevel: "CRITICAL",
	zapcore.PanicLevel:  "ALERT",
	zapcore.FatalLevel:  "EMERGENCY",
}

func encodeTimeMicros(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(TimestampLayout))
}

func encodeSeverity(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	severity, ok := severities[l]
	if !ok {
		severity = "DEFAULT"
	}
	enc.AppendString(severity)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stack_trace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     encodeTimeMicros,
		EncodeLevel:    encodeSeverity,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// newLogger writes JSON entries to w, filtered by the shared atomic level.
func newLogger(w zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), w, level)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(w),
	)
}

func initLogger() {
	rootLogger = newLogger(zapcore.Lock(os.Stdout))
	current.Store(rootLogger)
}

// Logger returns the process-wide zap.Logger instance.
func Logger() *zap.Logger {
	loggerOnce.Do(initLogger)
	return current.Load()
}

// Sync flushes buffered log entries. Call during shutdown.
func Sync() error {
	return Logger().Sync()
}

// Configure applies the configured level and tags every later entry with a
// serviceContext so Error Reporting can group errors by service and version.
// Calling it again replaces the previous service context.
func Configure(levelName, service, version string) error {
	if err := SetLevel(levelName); err != nil {
		return err
	}
	loggerOnce.Do(initLogger)
	current.Store(rootLogger.With(zap.Dict("serviceContext",
		zap.String("service", service),
		zap.String("version", version),
	)))
	return nil
}

// SetLevel changes the minimum enabled level of the shared logger.
// It accepts zap level names such as "debug", "info", "warn" and "error".
func SetLevel(name string) error {
	l, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

// Level reports the current minimum enabled level.
func Level() zapcore.Level {
	return level.Level()
}
