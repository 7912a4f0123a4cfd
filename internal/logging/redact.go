// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/logweave/internal/config"
	"github.com/fyrsmithlabs/logweave/internal/secrets"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxRedactPatternLen = 200

// secretMarshaler wraps config.Secret for Zap object marshaling.
type secretMarshaler struct {
	key string
	val config.Secret
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *secretMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(s.key, fmt.Sprintf("[REDACTED:%d]", len(s.val.Value())))
	return nil
}

// Secret creates a Zap field for config.Secret with redaction indicator.
func Secret(key string, val config.Secret) zap.Field {
	return zap.Object(key, &secretMarshaler{key: key, val: val})
}

// RedactedString creates a Zap field with redacted value and length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// DefaultRedactionConfig returns the field names and patterns redacted
// by the redact format.
func DefaultRedactionConfig() RedactionConfig {
	return RedactionConfig{
		Enabled: true,
		Fields: []string{
			"password", "secret", "token", "api_key",
			"authorization", "bearer", "credential", "private_key",
		},
		Patterns: []string{
			`(?i)bearer\s+\S+`,
			`(?i)api[_-]?key[=:]\s*\S+`,
		},
	}
}

// redactor holds compiled redaction rules.
type redactor struct {
	fields   map[string]bool
	patterns []*regexp.Regexp
	scrubber *secrets.Scrubber
}

// newRedactStage compiles cfg into a stage that redacts sensitive field
// names and string values matching any pattern, one level into maps.
// A disabled config yields a pass-through stage.
func newRedactStage(cfg RedactionConfig) (Stage, error) {
	if !cfg.Enabled {
		return func(e *Entry) *Entry { return e }, nil
	}

	r := &redactor{fields: make(map[string]bool, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		r.fields[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxRedactPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxRedactPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	if cfg.Secrets {
		s, err := secrets.New(secrets.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("secret scrubber: %w", err)
		}
		r.scrubber = s
	}

	return func(e *Entry) *Entry {
		for k, v := range e.Fields {
			e.Fields[k] = r.value(k, v, true)
		}
		if r.matches(e.Message) {
			e.Message = "[REDACTED:pattern]"
		} else {
			e.Message = r.scrub(e.Message)
		}
		return e
	}, nil
}

func (r *redactor) value(key string, v any, descend bool) any {
	if r.fields[strings.ToLower(key)] {
		return "[REDACTED]"
	}
	switch val := v.(type) {
	case string:
		if r.matches(val) {
			return "[REDACTED:pattern]"
		}
		return r.scrub(val)
	case map[string]any:
		if !descend {
			return val
		}
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = r.value(k, inner, false)
		}
		return out
	}
	return v
}

func (r *redactor) matches(s string) bool {
	for _, re := range r.patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func (r *redactor) scrub(s string) string {
	if r.scrubber == nil {
		return s
	}
	out, _ := r.scrubber.Scrub(s)
	return out
}
