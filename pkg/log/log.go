// Package log is the structured logger of mzn-remote. Components log through
// the package functions or a named child obtained with WithName.
package log

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across the module.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	// Error logs at error level with err attached under "error".
	Error(err error, msg string, keysAndValues ...any)

	WithName(name string) Logger
	WithValues(keysAndValues ...any) Logger

	// Logr adapts the logger for libraries that take a logr.Logger.
	Logr() logr.Logger

	Sync() error
}

type logger struct {
	z *zap.Logger
}

var _ Logger = (*logger)(nil)

var (
	mu    sync.RWMutex
	std   Logger = NewNopLogger()
	level        = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// NewLogger builds a Logger from opts. A nil opts uses the defaults. The
// level of every logger built here follows SetLevel.
func NewLogger(opts *Options) Logger {
	if opts == nil {
		opts = NewOptions()
	}

	lvl, err := parseLevel(opts.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	cfg := zap.Config{
		Level:            level,
		DisableCaller:    opts.DisableCaller,
		Encoding:         opts.Format,
		EncoderConfig:    encoderConfig(opts),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	z, err := cfg.Build(zap.AddCallerSkip(opts.CallerSkip), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		panic(fmt.Sprintf("failed to build zap logger: %v", err))
	}
	if opts.Name != "" {
		z = z.Named(opts.Name)
	}
	return &logger{z: z}
}

func encoderConfig(opts *Options) zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.MessageKey = "message"
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	// Durations are logged in milliseconds; robot latencies are read that way.
	enc.EncodeDuration = func(d time.Duration, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendFloat64(float64(d) / float64(time.Millisecond))
	}
	if opts.Format == FormatConsole && opts.EnableColor {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return enc
}

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	err := lvl.UnmarshalText([]byte(s))
	return lvl, err
}

// Init replaces the process-wide logger.
func Init(opts *Options) {
	l := NewLogger(opts)

	mu.Lock()
	defer mu.Unlock()
	std = l
}

// SetLevel changes the minimum level of every logger built by NewLogger.
func SetLevel(s string) error {
	lvl, err := parseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level returns the current minimum level.
func Level() string {
	return level.Level().String()
}

// Std returns the process-wide logger.
func Std() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &logger{z: zap.NewNop()}
}

func Debug(msg string, keysAndValues ...any)            { Std().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)             { Std().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)             { Std().Warn(msg, keysAndValues...) }
func Error(err error, msg string, keysAndValues ...any) { Std().Error(err, msg, keysAndValues...) }
func WithName(name string) Logger                       { return &lazy{name: name} }
func WithValues(keysAndValues ...any) Logger            { return &lazy{values: keysAndValues} }
func Logr() logr.Logger                                 { return Std().Logr() }
func Sync() error                                       { return Std().Sync() }

func (l *logger) Debug(msg string, keysAndValues ...any) {
	l.z.Debug(msg, toFields(keysAndValues...)...)
}

func (l *logger) Info(msg string, keysAndValues ...any) {
	l.z.Info(msg, toFields(keysAndValues...)...)
}

func (l *logger) Warn(msg string, keysAndValues ...any) {
	l.z.Warn(msg, toFields(keysAndValues...)...)
}

func (l *logger) Error(err error, msg string, keysAndValues ...any) {
	fields := toFields(keysAndValues...)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.z.Error(msg, fields...)
}

func (l *logger) WithName(name string) Logger {
	return &logger{z: l.z.Named(name)}
}

func (l *logger) WithValues(keysAndValues ...any) Logger {
	return &logger{z: l.z.With(toFields(keysAndValues...)...)}
}

func (l *logger) Logr() logr.Logger {
	return zapr.NewLogger(l.z)
}

func (l *logger) Sync() error {
	return l.z.Sync()
}

// lazy resolves against the process-wide logger on every call. Components
// create their named loggers at construction time, which may precede Init.
type lazy struct {
	parent *lazy
	name   string
	values []any
}

func (l *lazy) resolve() Logger {
	var base Logger
	if l.parent != nil {
		base = l.parent.resolve()
	} else {
		base = Std()
	}
	if l.name != "" {
		base = base.WithName(l.name)
	}
	if len(l.values) > 0 {
		base = base.WithValues(l.values...)
	}
	return base
}

func (l *lazy) Debug(msg string, kv ...any)            { l.resolve().Debug(msg, kv...) }
func (l *lazy) Info(msg string, kv ...any)             { l.resolve().Info(msg, kv...) }
func (l *lazy) Warn(msg string, kv ...any)             { l.resolve().Warn(msg, kv...) }
func (l *lazy) Error(err error, msg string, kv ...any) { l.resolve().Error(err, msg, kv...) }
func (l *lazy) WithName(name string) Logger            { return &lazy{parent: l, name: name} }
func (l *lazy) WithValues(kv ...any) Logger            { return &lazy{parent: l, values: kv} }
func (l *lazy) Logr() logr.Logger                      { return l.resolve().Logr() }
func (l *lazy) Sync() error                            { return l.resolve().Sync() }

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the process-wide logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(Logger); ok {
			return l
		}
	}
	return Std()
}
