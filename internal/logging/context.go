package logging

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrInvalidID is returned when a request or session ID is rejected.
var ErrInvalidID = errors.New("invalid correlation id")

const maxIDLen = 128

// idKey is the context key of one correlation ID. Its string form is the
// field name the ID is logged under.
type idKey string

const (
	sessionKey idKey = "session.id"
	requestKey idKey = "request.id"
)

// WithRequestID returns a copy of ctx whose entries carry request.id.
// IDs must be 1-128 ASCII letters, digits, hyphens or underscores.
func WithRequestID(ctx context.Context, id string) (context.Context, error) {
	return withID(ctx, requestKey, id)
}

// WithSessionID returns a copy of ctx whose entries carry session.id.
func WithSessionID(ctx context.Context, id string) (context.Context, error) {
	return withID(ctx, sessionKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestKey).(string)
	return id
}

// SessionIDFromContext returns the session ID stored in ctx, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}

func withID(ctx context.Context, key idKey, id string) (context.Context, error) {
	if err := checkID(id); err != nil {
		return ctx, fmt.Errorf("%w: %s %v", ErrInvalidID, string(key), err)
	}
	return context.WithValue(ctx, key, id), nil
}

func checkID(id string) error {
	switch {
	case id == "":
		return errors.New("is empty")
	case len(id) > maxIDLen:
		return fmt.Errorf("longer than %d bytes", maxIDLen)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c != '-' && c != '_' && !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') {
			return fmt.Errorf("has invalid character %q at %d", c, i)
		}
	}
	return nil
}

// ContextFields returns the correlation fields found in ctx: the active
// span's trace_id, span_id and trace_sampled, then session.id and
// request.id.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	for _, key := range []idKey{sessionKey, requestKey} {
		if id, ok := ctx.Value(key).(string); ok {
			fields = append(fields, zap.String(string(key), id))
		}
	}
	return fields
}

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored by WithLogger. Without one it
// returns a logger that drops everything.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return newLogger("", zap.NewNop(), DebugLevel, 0)
}
