// internal/logging/logger.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Logger is a named logger built from configuration.
//
// Every Logger keeps a base without context, the canonical root plus any
// With fields, so context views never stack on each other.
type Logger struct {
	name  string
	zap   *zap.Logger
	base  *zap.Logger
	level Level
	sinks int
	res   *resources
}

func newLogger(name string, z *zap.Logger, level Level, sinks int) *Logger {
	return &Logger{
		name:  name,
		zap:   z,
		base:  z,
		level: level,
		sinks: sinks,
	}
}

// Name returns the logical name the logger was built for.
func (l *Logger) Name() string {
	return l.name
}

// Level returns the logger threshold.
func (l *Logger) Level() Level {
	return l.level
}

// Sinks returns the number of transports the logger writes to.
func (l *Logger) Sinks() int {
	return l.sinks
}

// Enabled reports whether any sink accepts entries at level.
func (l *Logger) Enabled(level Level) bool {
	return level.Valid() && l.zap.Core().Enabled(level.zapLevel())
}

func (l *Logger) Error(ctx context.Context, payload any, fields ...zap.Field) {
	l.log(ctx, ErrorLevel, payload, fields)
}

func (l *Logger) Warn(ctx context.Context, payload any, fields ...zap.Field) {
	l.log(ctx, WarnLevel, payload, fields)
}

func (l *Logger) Info(ctx context.Context, payload any, fields ...zap.Field) {
	l.log(ctx, InfoLevel, payload, fields)
}

func (l *Logger) HTTP(ctx context.Context, payload any, fields ...zap.Field) {
	l.log(ctx, HTTPLevel, payload, fields)
}

func (l *Logger) Verbose(ctx context.Context, payload any, fields ...zap.Field) {
	l.log(ctx, VerboseLevel, payload, fields)
}

func (l *Logger) Debug(ctx context.Context, payload any, fields ...zap.Field) {
	l.log(ctx, DebugLevel, payload, fields)
}

// Log emits payload at the named level. Unknown level names return
// ErrUnknownLevel and nothing is emitted.
func (l *Logger) Log(ctx context.Context, level string, payload any, fields ...zap.Field) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.log(ctx, lvl, payload, fields)
	return nil
}

// Logf emits a message whose arguments are interpolated by the splat
// format. Without a splat stage the arguments are kept under "splat".
func (l *Logger) Logf(ctx context.Context, level Level, format string, args ...any) {
	l.log(ctx, level, format, []zap.Field{splatField(args)})
}

func (l *Logger) log(ctx context.Context, level Level, payload any, fields []zap.Field) {
	if !l.Enabled(level) {
		return
	}
	msg, extra := payloadFields(payload)

	all := make([]zap.Field, 0, len(extra)+len(fields)+4)
	if ctx != nil {
		all = append(all, ContextFields(ctx)...)
	}
	all = append(all, extra...)
	all = append(all, fields...)
	l.zap.Log(level.zapLevel(), msg, all...)
}

// payloadFields splits a payload into a message and extra fields.
// Errors without a recorded stack get one here.
func payloadFields(payload any) (string, []zap.Field) {
	switch p := payload.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case error:
		var st stackTracer
		if !errors.As(p, &st) {
			p = pkgerrors.WithStack(p)
		}
		return "", []zap.Field{zap.Error(p)}
	case fmt.Stringer:
		return p.String(), nil
	default:
		return fmt.Sprintf("%v", p), []zap.Field{zap.Any(FieldPayload, p)}
	}
}

// WithContext returns a view whose entries carry v under "context". The
// receiver is not modified, any context on the receiver is replaced rather
// than merged, and fields added with With are kept.
func (l *Logger) WithContext(v any) *Logger {
	clone := *l
	clone.zap = l.base.With(zap.Any(FieldContext, v))
	return &clone
}

// WithoutContext returns a view whose entries are marked as having no
// context. Fields added with With are kept.
func (l *Logger) WithoutContext() *Logger {
	clone := *l
	clone.zap = l.base.With(contextClearedField())
	return &clone
}

// With returns a child logger with additional fields. The receiver is
// unchanged.
func (l *Logger) With(fields ...zap.Field) *Logger {
	clone := *l
	clone.zap = l.zap.With(fields...)
	clone.base = l.base.With(fields...)
	return &clone
}

// Sync flushes every sink. Sync errors from terminals are ignored.
func (l *Logger) Sync() error {
	var errs error
	for _, err := range multierr.Errors(l.zap.Sync()) {
		if !isStdoutSyncError(err) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Close flushes the logger then releases its sink connections, files and
// delivery goroutines. Views share their logger's sinks, so closing one
// closes all. Entries logged afterwards are dropped.
func (l *Logger) Close() error {
	return multierr.Append(l.Sync(), l.res.close())
}

// resources are the closable writers behind one built logger.
type resources struct {
	once    sync.Once
	closers []io.Closer
	err     error
}

func newResources(closers []io.Closer) *resources {
	return &resources{closers: closers}
}

func (r *resources) close() error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		for _, c := range r.closers {
			r.err = multierr.Append(r.err, c.Close())
		}
	})
	return r.err
}

// Underlying returns the underlying zap.Logger.
// Useful when integrating with libraries that require a *zap.Logger.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// isStdoutSyncError checks if error is harmless stdout/stderr sync error.
// On Linux, syncing stdout/stderr returns EINVAL or ENOTTY which are safe to ignore.
func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
