// internal/logging/config.go
package logging

import (
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/fyrsmithlabs/logweave/internal/config"
	"go.uber.org/zap/zapcore"
)

// ConfigKey is the configuration subtree the engine reads.
const ConfigKey = "logger"

// Options is the engine-wide logging configuration.
type Options struct {
	// Default names the logger used when none is requested.
	Default string `koanf:"default"`

	// DisableConsole drops console transports from every logger.
	DisableConsole bool `koanf:"disable_console"`

	Loggers map[string]LoggerConfig `koanf:"loggers"`
}

// LoggerConfig configures one named logger.
type LoggerConfig struct {
	Level      Level             `koanf:"level"`
	Transports []TransportSpec   `koanf:"transports"`
	Fields     map[string]string `koanf:"fields"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// TransportSpec configures one sink of a logger.
type TransportSpec struct {
	Format    FormatList `koanf:"format"`
	Transport Transport  `koanf:"transport"`

	// Stages are appended after Format. Not settable from files.
	Stages []Stage `koanf:"-"`

	// Sink is an already-built core used as is; Transport and Format are
	// ignored when it is set.
	Sink zapcore.Core `koanf:"-"`

	Labels  map[string]any `koanf:"labels"`
	Options map[string]any `koanf:"options"`
}

// SamplingConfig controls log volume reduction.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`

	// Secrets scrubs known credential formats out of the message and
	// string fields, leaving the surrounding text intact.
	Secrets bool `koanf:"secrets"`
}

// DefaultLoggerConfig returns the settings a logger falls back to for
// anything its own configuration leaves empty.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level: DebugLevel,
		Transports: []TransportSpec{
			{Transport: TransportDefault, Format: Formats(FormatDefault)},
		},
		Sampling: SamplingConfig{
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
	}
}

// withDefaults fills empty fields of cfg from DefaultLoggerConfig.
// Values set by the caller always win.
func withDefaults(cfg LoggerConfig) (LoggerConfig, error) {
	if err := mergo.Merge(&cfg, DefaultLoggerConfig()); err != nil {
		return cfg, fmt.Errorf("merge logger defaults: %w", err)
	}
	return cfg, nil
}

// Validate checks config for errors.
func (c *LoggerConfig) Validate() error {
	if c.Level != 0 && !c.Level.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, uint8(c.Level))
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick.Duration() <= 0 {
			return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
		}
		if c.Sampling.Initial < 0 || c.Sampling.Thereafter < 0 {
			return fmt.Errorf("sampling initial and thereafter must be >= 0")
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}

// OptionsFromTree reads Options from the logger subtree of t.
func OptionsFromTree(t *config.Tree) (*Options, error) {
	var opts Options
	if err := t.Unmarshal(ConfigKey, &opts); err != nil {
		return nil, fmt.Errorf("unmarshal %s config: %w", ConfigKey, err)
	}
	if opts.Loggers == nil {
		opts.Loggers = make(map[string]LoggerConfig)
	}
	return &opts, nil
}
