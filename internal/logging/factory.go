// internal/logging/factory.go
package logging

import (
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Transport options consumed by the factory and never passed to sinks.
const (
	optionLevel    = "level"
	optionFormat   = "format"
	optionFilename = "filename"
)

// MakeLogger builds a logger from cfg without consulting or updating the
// store. Empty fields of cfg take their value from DefaultLoggerConfig.
//
// Transports with no registered driver are skipped and reported to the
// diagnostic logger. Console transports are skipped when the engine has
// DisableConsole set. Either way the remaining transports are still
// built, and a logger with no transports at all is valid.
func (e *Engine) MakeLogger(name string, cfg LoggerConfig) (*Logger, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("logger %q: invalid config: %w", name, err)
	}

	var redact Stage
	if cfg.Redaction.Enabled {
		redact, err = newRedactStage(cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("logger %q: %w", name, err)
		}
	}

	cores := make([]zapcore.Core, 0, len(cfg.Transports))
	var closers []io.Closer
	for i, spec := range cfg.Transports {
		core, err := e.buildSink(name, cfg.Level, spec, redact)
		if err != nil {
			_ = newResources(closers).close()
			return nil, fmt.Errorf("logger %q: transport %d (%s): %w", name, i, spec.Transport, err)
		}
		if core == nil {
			continue
		}
		cores = append(cores, core)
		if c, ok := core.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	core := newSampledCore(zapcore.NewTee(cores...), cfg.Sampling)
	z := zap.New(core).Named(name)
	if len(cfg.Fields) > 0 {
		z = z.With(constantFields(cfg.Fields)...)
	}

	e.metrics.loggerConstructed(name)
	l := newLogger(name, z, cfg.Level, len(cores))
	l.res = newResources(closers)
	return l, nil
}

// buildSink builds the core for one transport. A nil core with a nil
// error means the transport was skipped.
func (e *Engine) buildSink(name string, level Level, spec TransportSpec, redact Stage) (zapcore.Core, error) {
	if spec.Sink != nil {
		return withLevelFilter(spec.Sink, level.zapLevel()), nil
	}
	if spec.Transport.IsConsole() && e.opts.DisableConsole {
		return nil, nil
	}

	ctor, ok := e.transports.Resolve(spec.Transport)
	if !ok {
		e.diag.Warn("no driver for transport",
			zap.String("logger", name),
			zap.Stringer("transport", spec.Transport))
		e.metrics.transportSkipped(name, spec.Transport)
		return nil, nil
	}

	opts := make(map[string]any, len(spec.Options))
	for k, v := range spec.Options {
		opts[k] = v
	}

	sinkLevel := level
	if raw, ok := opts[optionLevel]; ok {
		l, err := levelOption(raw)
		if err != nil {
			return nil, err
		}
		if l != 0 && l < sinkLevel {
			sinkLevel = l
		}
		delete(opts, optionLevel)
	}
	delete(opts, optionFormat)

	pipeline, err := BuildPipeline(e.formats, PipelineSpec{
		Formats: spec.Format,
		Custom:  spec.Stages,
		Labels:  spec.Labels,
		Options: opts,
		Redact:  redact,
	})
	if err != nil {
		return nil, err
	}

	so := SinkOptions{
		Logger:  name,
		Options: opts,
		Format:  pipeline,
		Level:   sinkLevel,
	}
	if spec.Transport == TransportFile {
		if fn, ok := opts[optionFilename].(string); ok {
			path, err := e.logPath(fn)
			if err != nil {
				return nil, err
			}
			so.Filename = path
		}
	}
	return ctor(so)
}

// levelOption reads a level from a transport option value.
func levelOption(v any) (Level, error) {
	switch l := v.(type) {
	case Level:
		return l, nil
	case string:
		if l == "" {
			return 0, nil
		}
		return ParseLevel(l)
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownLevel, v)
	}
}

func constantFields(m map[string]string) []zap.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.String(k, m[k]))
	}
	return fields
}
