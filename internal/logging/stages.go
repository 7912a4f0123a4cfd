// internal/logging/stages.go
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	isoLayout             = "2006-01-02T15:04:05.000Z07:00"
	defaultPrintfTemplate = `{{.timestamp}} [{{.level}}] {{.message}}`
)

var (
	levelColors = map[Level]*color.Color{
		ErrorLevel:   forcedColor(color.FgRed),
		WarnLevel:    forcedColor(color.FgYellow),
		InfoLevel:    forcedColor(color.FgGreen),
		HTTPLevel:    forcedColor(color.FgGreen),
		VerboseLevel: forcedColor(color.FgCyan),
		DebugLevel:   forcedColor(color.FgBlue),
	}

	ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

	maxLevelLen = len(VerboseLevel.String())

	reservedFields = map[string]bool{
		FieldTimestamp: true,
		FieldStack:     true,
		FieldLabel:     true,
		FieldLabels:    true,
		FieldMs:        true,
		FieldMetadata:  true,
	}
)

// forcedColor colors regardless of whether stdout is a terminal; sinks
// other than the console may still want colored output.
func forcedColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	c.EnableColor()
	return c
}

func colorize(l Level, s string) string {
	c, ok := levelColors[l]
	if !ok {
		return s
	}
	return c.Sprint(s)
}

// defaultFormat renders `[level] <iso time> : <json message>` with a
// colored level.
func defaultFormat(e *Entry) *Entry {
	msg := any(e.Message)
	if p, ok := e.Fields[FieldPayload]; ok {
		msg = p
	}
	e.LevelLabel = colorize(e.Level, e.Level.String())
	e.Output = fmt.Sprintf("[%s] %s : %s", e.LevelLabel, e.Time.UTC().Format(isoLayout), jsonValue(msg))
	return e
}

func simpleFormat(e *Entry) *Entry {
	out := e.LevelLabel + ": " + e.Message
	if len(e.Fields) > 0 {
		rest, err := renderJSON(e, false, e.zapFields())
		if err == nil {
			out += " " + rest
		}
	}
	e.Output = out
	return e
}

func alignFormat(e *Entry) *Entry {
	e.Message = "\t" + e.Message
	return e
}

func colorizeFormat(e *Entry) *Entry {
	e.LevelLabel = colorize(e.Level, ansiPattern.ReplaceAllString(e.LevelLabel, ""))
	return e
}

func uncolorizeFormat(e *Entry) *Entry {
	e.LevelLabel = ansiPattern.ReplaceAllString(e.LevelLabel, "")
	e.Message = ansiPattern.ReplaceAllString(e.Message, "")
	e.Output = ansiPattern.ReplaceAllString(e.Output, "")
	return e
}

func padLevelsFormat(e *Entry) *Entry {
	if pad := maxLevelLen - len(e.Level.String()); pad > 0 {
		e.Message = strings.Repeat(" ", pad) + e.Message
	}
	return e
}

func jsonFormat(e *Entry) *Entry {
	out, err := renderJSON(e, true, e.zapFields())
	if err != nil {
		out = fmt.Sprintf(`{"level":%q,"message":%q,"encodeError":%q}`, e.LevelLabel, e.Message, err.Error())
	}
	e.Output = out
	return e
}

func prettyPrintFormat(e *Entry) *Entry {
	out, err := renderJSON(e, true, e.zapFields())
	if err != nil {
		e.Output = e.Message
		return e
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(out), "", "  "); err != nil {
		e.Output = out
		return e
	}
	e.Output = buf.String()
	return e
}

func logstashFormat(e *Entry) *Entry {
	fields := []zapcore.Field{zap.String("@message", e.Message)}
	if ts, ok := e.Fields[FieldTimestamp]; ok {
		fields = append(fields, zap.Any("@timestamp", ts))
	}
	rest := make([]zapcore.Field, 0, len(e.Fields))
	for _, f := range e.zapFields() {
		if f.Key != FieldTimestamp {
			rest = append(rest, f)
		}
	}
	fields = append(fields, zap.Object("@fields", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("level", e.LevelLabel)
		for _, f := range rest {
			f.AddTo(enc)
		}
		return nil
	})))

	out, err := renderJSON(e, false, fields)
	if err != nil {
		return jsonFormat(e)
	}
	e.Output = out
	return e
}

func labelFormat(e *Entry) *Entry {
	e.Fields[FieldLabel] = e.LoggerName
	return e
}

// metadataFormat nests every non-reserved field under FieldMetadata.
func metadataFormat(e *Entry) *Entry {
	meta := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		if reservedFields[k] {
			continue
		}
		meta[k] = v
		delete(e.Fields, k)
	}
	if len(meta) > 0 {
		e.Fields[FieldMetadata] = meta
	}
	return e
}

// newMsFormat adds the time elapsed since the previous entry seen by
// this stage instance.
func newMsFormat() Stage {
	var (
		mu   sync.Mutex
		prev time.Time
	)
	return func(e *Entry) *Entry {
		mu.Lock()
		var diff time.Duration
		if !prev.IsZero() {
			diff = e.Time.Sub(prev)
		}
		prev = e.Time
		mu.Unlock()

		e.Fields[FieldMs] = "+" + strconv.FormatInt(diff.Milliseconds(), 10) + "ms"
		return e
	}
}

// newPrintfFormat renders entries with a text/template. The template is
// read from the "template" transport option.
func newPrintfFormat(opts map[string]any) (Stage, error) {
	text := defaultPrintfTemplate
	if v, ok := opts["template"].(string); ok && v != "" {
		text = v
	}
	tmpl, err := template.New("printf").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse printf template: %w", err)
	}

	return func(e *Entry) *Entry {
		data := make(map[string]any, len(e.Fields)+2)
		for k, v := range e.Fields {
			data[k] = v
		}
		data["level"] = e.LevelLabel
		data["message"] = e.Message

		var b strings.Builder
		if err := tmpl.Execute(&b, data); err != nil {
			e.Output = e.Message
			return e
		}
		e.Output = b.String()
		return e
	}, nil
}

func splatFormat(e *Entry) *Entry {
	if len(e.Splat) == 0 {
		return e
	}
	e.Message = fmt.Sprintf(e.Message, e.Splat...)
	e.Splat = nil
	delete(e.Fields, fieldSplat)
	return e
}

func timestampFormat(e *Entry) *Entry {
	e.Fields[FieldTimestamp] = e.Time.Format(isoLayout)
	return e
}

// renderJSON encodes fields as a JSON object with zap's encoder. With
// header set, level and message lead the object.
func renderJSON(e *Entry, header bool, fields []zapcore.Field) (string, error) {
	cfg := zapcore.EncoderConfig{
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	if header {
		label := e.LevelLabel
		cfg.LevelKey = "level"
		cfg.MessageKey = "message"
		cfg.EncodeLevel = func(_ zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(label)
		}
	}

	buf, err := zapcore.NewJSONEncoder(cfg).EncodeEntry(zapcore.Entry{
		Level:   e.Level.zapLevel(),
		Message: e.Message,
	}, fields)
	if err != nil {
		return "", err
	}
	defer buf.Free()
	return strings.TrimRight(buf.String(), "\n"), nil
}

func jsonValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return strconv.Quote(fmt.Sprint(v))
	}
	return string(b)
}
