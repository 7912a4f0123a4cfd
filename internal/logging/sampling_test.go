package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/logweave/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampledLogger(cfg SamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(DebugLevel.zapLevel())
	return newLogger("sampled", zap.New(newSampledCore(core, cfg)), DebugLevel, 1), observed
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)

	sampled := newSampledCore(core, SamplingConfig{Enabled: false})

	assert.Equal(t, core, sampled)
}

func TestNewSampledCore_WarnAndErrorNeverSampled(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    1,
		Thereafter: 0,
	})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		logger.Error(ctx, "error message")
		logger.Warn(ctx, "warn message")
	}

	assert.Equal(t, 50, observed.FilterMessage("error message").Len())
	assert.Equal(t, 50, observed.FilterMessage("warn message").Len())
}

func TestNewSampledCore_InfoSampled(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    5,
		Thereafter: 0,
	})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		logger.Info(ctx, "info message")
	}

	assert.Equal(t, 5, observed.FilterMessage("info message").Len())
}

func TestNewSampledCore_Thereafter(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    2,
		Thereafter: 5,
	})
	ctx := context.Background()

	for i := 0; i < 22; i++ {
		logger.HTTP(ctx, "request served")
	}

	// 2 initial, then every 5th of the remaining 20.
	assert.Equal(t, 6, observed.FilterMessage("request served").Len())
}

func TestLevelFilterCore(t *testing.T) {
	core, observed := observer.New(DebugLevel.zapLevel())
	filtered := withLevelFilter(core, WarnLevel.zapLevel())
	logger := newLogger("filtered", zap.New(filtered), DebugLevel, 1)
	ctx := context.Background()

	logger.Info(ctx, "dropped")
	logger.Warn(ctx, "kept")

	child := logger.With(zap.String("component", "child"))
	child.Debug(ctx, "child dropped")
	child.Error(ctx, "child kept")

	assert.Equal(t, 0, observed.FilterMessage("dropped").Len())
	assert.Equal(t, 1, observed.FilterMessage("kept").Len())
	assert.Equal(t, 1, observed.FilterMessage("child kept").Len())
	assert.False(t, logger.Enabled(InfoLevel))
	assert.True(t, logger.Enabled(ErrorLevel))
}
