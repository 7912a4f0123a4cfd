// internal/logging/formats.go
package logging

import (
	"fmt"
	"strconv"
	"strings"
)

// Format identifies a pipeline stage.
type Format int

const (
	FormatDefault Format = iota
	FormatSimple
	FormatAlign
	FormatCli
	FormatColorize
	FormatCombine
	FormatErrors
	FormatJSON
	FormatLabel
	FormatLogstash
	FormatMetadata
	FormatMs
	FormatPadLevels
	FormatPrettyPrint
	FormatPrintf
	FormatSplat
	FormatTimestamp
	FormatUncolorize
	FormatRedact

	formatCount
)

// formatInvalid is what unrecognized names decode to. It never resolves.
const formatInvalid Format = -1

var formatNames = [formatCount]string{
	FormatDefault:     "default",
	FormatSimple:      "simple",
	FormatAlign:       "align",
	FormatCli:         "cli",
	FormatColorize:    "colorize",
	FormatCombine:     "combine",
	FormatErrors:      "errors",
	FormatJSON:        "json",
	FormatLabel:       "label",
	FormatLogstash:    "logstash",
	FormatMetadata:    "metadata",
	FormatMs:          "ms",
	FormatPadLevels:   "pad_levels",
	FormatPrettyPrint: "pretty_print",
	FormatPrintf:      "printf",
	FormatSplat:       "splat",
	FormatTimestamp:   "timestamp",
	FormatUncolorize:  "uncolorize",
	FormatRedact:      "redact",
}

func (f Format) String() string {
	if f < 0 || f >= formatCount {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat parses a format name or its numeric identifier.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(name); err == nil {
		return Format(n), nil
	}
	name = strings.ReplaceAll(name, "-", "_")
	for i, n := range formatNames {
		if n == name || strings.ReplaceAll(n, "_", "") == name {
			return Format(i), nil
		}
	}
	return formatInvalid, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
//
// Unknown names do not fail decoding; they resolve to an invalid format
// so the error surfaces when the logger is built.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, _ := ParseFormat(string(text))
	*f = parsed
	return nil
}

// FormatList is an ordered list of formats. Configuration may give a
// single format or a list.
type FormatList []Format

// Formats is a convenience constructor for FormatList.
func Formats(ids ...Format) FormatList {
	return FormatList(ids)
}

// StageFactory creates a stage. opts are the transport options.
type StageFactory func(opts map[string]any) (Stage, error)

// FormatRegistry maps every Format to its StageFactory.
type FormatRegistry struct {
	factories [formatCount]StageFactory
}

// NewFormatRegistry returns a registry with the built-in stages.
func NewFormatRegistry() *FormatRegistry {
	r := &FormatRegistry{}
	r.factories = [formatCount]StageFactory{
		FormatDefault:     stateless(defaultFormat),
		FormatSimple:      stateless(simpleFormat),
		FormatAlign:       stateless(alignFormat),
		FormatCli:         stateless(Combine(colorizeFormat, padLevelsFormat)),
		FormatColorize:    stateless(colorizeFormat),
		FormatCombine:     stateless(func(e *Entry) *Entry { return e }),
		FormatErrors:      stateless(expandErrors),
		FormatJSON:        stateless(jsonFormat),
		FormatLabel:       stateless(labelFormat),
		FormatLogstash:    stateless(logstashFormat),
		FormatMetadata:    stateless(metadataFormat),
		FormatMs:          func(map[string]any) (Stage, error) { return newMsFormat(), nil },
		FormatPadLevels:   stateless(padLevelsFormat),
		FormatPrettyPrint: stateless(prettyPrintFormat),
		FormatPrintf:      newPrintfFormat,
		FormatSplat:       stateless(splatFormat),
		FormatTimestamp:   stateless(timestampFormat),
		FormatUncolorize:  stateless(uncolorizeFormat),
		FormatRedact: func(map[string]any) (Stage, error) {
			return newRedactStage(DefaultRedactionConfig())
		},
	}
	return r
}

// Resolve returns the factory for id, or false if there is none.
func (r *FormatRegistry) Resolve(id Format) (StageFactory, bool) {
	if id < 0 || id >= formatCount {
		return nil, false
	}
	f := r.factories[id]
	return f, f != nil
}

// Register replaces the factory for a known format.
func (r *FormatRegistry) Register(id Format, factory StageFactory) error {
	if id < 0 || id >= formatCount {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, id)
	}
	r.factories[id] = factory
	return nil
}

func stateless(s Stage) StageFactory {
	return func(map[string]any) (Stage, error) { return s, nil }
}
