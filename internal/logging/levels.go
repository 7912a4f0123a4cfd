// internal/logging/levels.go
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is a log severity. Lower values are more severe.
//
// The zero value means "unset" and is replaced by DebugLevel when a logger
// is built.
type Level uint8

const (
	ErrorLevel Level = iota + 1
	WarnLevel
	InfoLevel
	HTTPLevel
	VerboseLevel
	DebugLevel
)

var levelNames = [...]string{
	ErrorLevel:   "error",
	WarnLevel:    "warn",
	InfoLevel:    "info",
	HTTPLevel:    "http",
	VerboseLevel: "verbose",
	DebugLevel:   "debug",
}

// Levels returns every level ordered from most to least severe.
func Levels() []Level {
	return []Level{ErrorLevel, WarnLevel, InfoLevel, HTTPLevel, VerboseLevel, DebugLevel}
}

// Valid reports whether l is one of the six known levels.
func (l Level) Valid() bool {
	return l >= ErrorLevel && l <= DebugLevel
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", uint8(l))
	}
	return levelNames[l]
}

// Allows reports whether an entry at other passes a threshold of l.
func (l Level) Allows(other Level) bool {
	return other.Valid() && other <= l
}

// ParseLevel parses a level name. Anything outside the closed set
// returns ErrUnknownLevel.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, l := range Levels() {
		if levelNames[l] == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l == 0 {
		return []byte{}, nil
	}
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, uint8(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value
// leaves the level unset.
func (l *Level) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*l = 0
		return nil
	}
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// zapLevel maps l onto a distinct zapcore.Level: error=2 ... debug=-3.
func (l Level) zapLevel() zapcore.Level {
	return zapcore.Level(3 - int8(l))
}

// levelFromZap is the inverse of zapLevel. DPanic, Panic and Fatal entries
// written through Underlying map to error.
func levelFromZap(z zapcore.Level) Level {
	switch {
	case z >= zapcore.ErrorLevel:
		return ErrorLevel
	case z <= DebugLevel.zapLevel():
		return DebugLevel
	}
	return Level(3 - int8(z))
}

// levelEncoder writes our level names instead of zap's.
func levelEncoder(z zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(levelFromZap(z).String())
}
