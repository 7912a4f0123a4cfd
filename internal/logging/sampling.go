// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with level-aware sampling.
// Warn and above are never sampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	warnAndAbove := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= WarnLevel.zapLevel()
	})
	belowWarn := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l < WarnLevel.zapLevel()
	})

	sampled := zapcore.NewSamplerWithOptions(
		withLevelFilter(core, belowWarn),
		cfg.Tick.Duration(),
		cfg.Initial,
		cfg.Thereafter,
	)

	return zapcore.NewTee(withLevelFilter(core, warnAndAbove), sampled)
}
