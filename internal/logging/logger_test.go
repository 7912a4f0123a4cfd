package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// entryRecorder is a terminal stage that keeps every entry it sees.
type entryRecorder struct {
	mu      sync.Mutex
	entries []*Entry
}

func (r *entryRecorder) stage(e *Entry) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return e
}

func (r *entryRecorder) all() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Entry(nil), r.entries...)
}

// recordedLogger returns a logger whose single sink renders JSON into a
// buffer after recording each entry.
func recordedLogger(level Level) (*Logger, *entryRecorder, *bytes.Buffer) {
	rec := &entryRecorder{}
	var buf bytes.Buffer
	pipeline := Combine(expandErrors, rec.stage, jsonFormat)
	core := newPipelineCore(pipeline, zapcore.Lock(zapcore.AddSync(&buf)), level.zapLevel())
	return newLogger("rec", zap.New(core).Named("rec"), level, 1), rec, &buf
}

func TestLogger_LevelMethods(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tests := []struct {
		name  string
		log   func(context.Context, any, ...zap.Field)
		level Level
	}{
		{"error", tl.Error, ErrorLevel},
		{"warn", tl.Warn, WarnLevel},
		{"info", tl.Info, InfoLevel},
		{"http", tl.HTTP, HTTPLevel},
		{"verbose", tl.Verbose, VerboseLevel},
		{"debug", tl.Debug, DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.log(ctx, tt.name+" message", zap.String("key", "val"))
			tl.AssertLogged(t, tt.level, tt.name+" message")
			tl.AssertField(t, tt.name+" message", "key", "val")
		})
	}
}

func TestLogger_Threshold(t *testing.T) {
	l, rec, _ := recordedLogger(InfoLevel)
	ctx := context.Background()

	l.Error(ctx, "e")
	l.Info(ctx, "i")
	l.HTTP(ctx, "h")
	l.Debug(ctx, "d")

	entries := rec.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "e", entries[0].Message)
	assert.Equal(t, "i", entries[1].Message)
	assert.False(t, l.Enabled(HTTPLevel))
	assert.False(t, l.Enabled(Level(0)))
}

func TestLogger_Log(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, "verbose", "by name"))
	err := l.Log(ctx, "trace", "never")
	require.ErrorIs(t, err, ErrUnknownLevel)

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, VerboseLevel, entries[0].Level)
	assert.Equal(t, "verbose", entries[0].LevelLabel)
}

type stringer struct{ v string }

func (s stringer) String() string { return "stringer:" + s.v }

func TestLogger_Payloads(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)
	ctx := context.Background()

	l.Info(ctx, nil)
	l.Info(ctx, stringer{"x"})
	l.Info(ctx, map[string]int{"n": 1})
	l.Info(ctx, 42)

	entries := rec.all()
	require.Len(t, entries, 4)
	assert.Equal(t, "", entries[0].Message)
	assert.Equal(t, "stringer:x", entries[1].Message)
	assert.Equal(t, "map[n:1]", entries[2].Message)
	assert.Equal(t, map[string]int{"n": 1}, entries[2].Fields[FieldPayload])
	assert.Equal(t, "42", entries[3].Message)
	assert.Equal(t, int64(42), entries[3].Fields[FieldPayload])
}

func TestLogger_ErrorPayloadGetsStack(t *testing.T) {
	l, rec, buf := recordedLogger(DebugLevel)

	l.Error(context.Background(), errors.New("disk full"))

	entries := rec.all()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "disk full", e.Message)
	require.Error(t, e.Err)
	stack, ok := e.Fields[FieldStack].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(stack, "disk full"))
	assert.Contains(t, stack, "TestLogger_ErrorPayloadGetsStack")
	assert.Contains(t, buf.String(), `"message":"disk full"`)
}

func TestLogger_Logf(t *testing.T) {
	t.Run("with splat stage", func(t *testing.T) {
		var buf bytes.Buffer
		core := newPipelineCore(Combine(splatFormat, simpleFormat), zapcore.AddSync(&buf), DebugLevel.zapLevel())
		l := newLogger("splat", zap.New(core), DebugLevel, 1)

		l.Logf(context.Background(), InfoLevel, "%d items in %s", 3, "cart")

		assert.Equal(t, "info: 3 items in cart\n", buf.String())
	})

	t.Run("without splat stage", func(t *testing.T) {
		l, rec, _ := recordedLogger(DebugLevel)

		l.Logf(context.Background(), InfoLevel, "%d items", 3)

		entries := rec.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "%d items", entries[0].Message)
		assert.Equal(t, []any{3}, entries[0].Fields["splat"])
	})
}

func TestLogger_WithContextDoesNotMutate(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)
	ctx := context.Background()

	view := l.WithContext(map[string]any{"user": "42"})
	view.Info(ctx, "from view")
	l.Info(ctx, "from root")

	entries := rec.all()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{"user": "42"}, entries[0].Fields[FieldContext])
	assert.NotContains(t, entries[1].Fields, FieldContext)
	assert.False(t, entries[1].ContextCleared)
}

func TestLogger_WithContextReplaces(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)

	l.WithContext("first").WithContext("second").Info(context.Background(), "x")

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Fields[FieldContext])
}

func TestLogger_WithoutContext(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)

	l.WithContext("ctx").WithoutContext().Info(context.Background(), "cleared")

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].ContextCleared)
	assert.NotContains(t, entries[0].Fields, FieldContext)
}

func TestLogger_With(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)

	child := l.With(zap.String("component", "worker"))
	child.Info(context.Background(), "child")
	l.Info(context.Background(), "parent")

	entries := rec.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "worker", entries[0].Fields["component"])
	assert.NotContains(t, entries[1].Fields, "component")
	assert.Equal(t, "rec", entries[0].LoggerName)
}

func TestLogger_WithFieldsSurviveContextViews(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)
	ctx := context.Background()

	child := l.With(zap.String("component", "worker"))
	scoped := child.WithContext(map[string]any{"job": "7"})
	scoped.Info(ctx, "scoped")
	scoped.WithoutContext().Info(ctx, "cleared")
	child.WithContext("a").WithContext("b").Info(ctx, "replaced")

	entries := rec.all()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "worker", e.Fields["component"], e.Message)
	}
	assert.Equal(t, map[string]any{"job": "7"}, entries[0].Fields[FieldContext])
	assert.True(t, entries[1].ContextCleared)
	assert.NotContains(t, entries[1].Fields, FieldContext)
	assert.Equal(t, "b", entries[2].Fields[FieldContext])
}

func TestLogger_ConcurrentViews(t *testing.T) {
	l, rec, _ := recordedLogger(DebugLevel)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.WithContext(i).Info(ctx, fmt.Sprintf("msg %d", i))
		}(i)
	}
	wg.Wait()

	entries := rec.all()
	require.Len(t, entries, 20)
	for _, e := range entries {
		assert.Equal(t, fmt.Sprintf("msg %d", e.Fields[FieldContext]), e.Message)
	}
}

func TestLogger_Accessors(t *testing.T) {
	l, _, _ := recordedLogger(WarnLevel)

	assert.Equal(t, "rec", l.Name())
	assert.Equal(t, WarnLevel, l.Level())
	assert.Equal(t, 1, l.Sinks())
	assert.NotNil(t, l.Underlying())
	assert.NoError(t, l.Sync())
}
