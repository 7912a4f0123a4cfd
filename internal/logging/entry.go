// internal/logging/entry.go
package logging

import (
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Reserved entry field names.
const (
	FieldTimestamp = "timestamp"
	FieldStack     = "stack"
	FieldContext   = "context"
	FieldLabels    = "labels"
	FieldLabel     = "label"
	FieldMetadata  = "metadata"
	FieldMs        = "ms"
	FieldPayload   = "payload"

	fieldError = "error"
	fieldSplat = "splat"
)

// Entry is a single log event as it moves through a pipeline.
//
// Stages mutate the entry in place and return it, or return nil to drop it.
// Terminal serializers set Output; sinks write Output verbatim.
type Entry struct {
	Level      Level
	LevelLabel string
	Message    string
	Time       time.Time
	LoggerName string

	// Err is the error the entry was logged with, if any.
	Err error

	Fields map[string]any

	// Splat holds format arguments for the splat stage.
	Splat []any

	// ContextCleared is set on entries from a WithoutContext view.
	ContextCleared bool

	Output string
}

// NewEntry returns an entry with an initialized field map.
func NewEntry(level Level, msg string) *Entry {
	return &Entry{
		Level:      level,
		LevelLabel: level.String(),
		Message:    msg,
		Time:       time.Now(),
		Fields:     make(map[string]any),
	}
}

// entryFromZap converts a zap entry and its fields into an Entry.
// Error, splat and context-clearing fields are lifted out of the field map.
func entryFromZap(ent zapcore.Entry, fields []zapcore.Field) *Entry {
	e := NewEntry(levelFromZap(ent.Level), ent.Message)
	e.Time = ent.Time
	e.LoggerName = ent.LoggerName

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		switch {
		case f.Key == FieldContext && f.Type == zapcore.SkipType:
			delete(enc.Fields, FieldContext)
			e.ContextCleared = true
			continue
		case f.Key == fieldSplat && f.Type == zapcore.SkipType:
			if args, ok := f.Interface.([]any); ok && len(args) > 0 {
				e.Splat = args
				e.Fields[fieldSplat] = args
			}
			continue
		case f.Key == fieldError && f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				e.Err = err
				continue
			}
		}
		f.AddTo(enc)
	}
	for k, v := range enc.Fields {
		e.Fields[k] = v
	}
	return e
}

// keys returns the field names in sorted order.
func (e *Entry) keys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// zapFields returns the entry fields as zap fields in key order.
func (e *Entry) zapFields() []zapcore.Field {
	keys := e.keys()
	fields := make([]zapcore.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, e.Fields[k]))
	}
	return fields
}

// contextClearedField marks a view whose context was explicitly removed.
// SkipType keeps it invisible to cores other than pipelineCore.
func contextClearedField() zap.Field {
	return zap.Field{Key: FieldContext, Type: zapcore.SkipType}
}

func splatField(args []any) zap.Field {
	return zap.Field{Key: fieldSplat, Type: zapcore.SkipType, Interface: args}
}
