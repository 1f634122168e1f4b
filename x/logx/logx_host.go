//go:build !tinygo

package logx

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base atomic.Pointer[zap.Logger]

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	l, err := cfg.Build(callerOpts...)
	if err != nil {
		l = zap.NewNop()
	}
	base.Store(l)
}

// callerOpts report the caller of the Logger method, not this file.
var callerOpts = []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}

// Configure rebuilds the process logger. format is "json" or "console".
// Loggers obtained from New before Configure follow the new settings.
func Configure(level, format, service string) error {
	return configure(level, format, service)
}

func configure(level, format, service string, outputs ...string) error {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(ParseLevel(level)))
	if len(outputs) > 0 {
		cfg.OutputPaths = outputs
	}

	l, err := cfg.Build(callerOpts...)
	if err != nil {
		return err
	}
	if service != "" {
		l = l.With(zap.String("service_name", service))
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		l = l.With(zap.String("hostname", host))
	}
	if old := base.Swap(l); old != nil {
		_ = old.Sync()
	}
	return nil
}

// Sync flushes buffered entries.
func Sync() { _ = base.Load().Sync() }

// New returns a named logger. It binds to the process logger lazily, so
// drivers opened before Configure pick up the configured level and sink.
func New(name string) Logger { return &zapLogger{name: name} }

type zapLogger struct {
	name string
	cur  atomic.Pointer[boundLogger]
}

// boundLogger is the named sugar built from one generation of base.
type boundLogger struct {
	from *zap.Logger
	s    *zap.SugaredLogger
}

func (l *zapLogger) sugar() *zap.SugaredLogger {
	b := base.Load()
	if c := l.cur.Load(); c != nil && c.from == b {
		return c.s
	}
	s := b.Named(l.name).Sugar()
	l.cur.Store(&boundLogger{from: b, s: s})
	return s
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.sugar().Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.sugar().Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.sugar().Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.sugar().Errorw(msg, kv...) }

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
