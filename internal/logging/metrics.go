// internal/logging/metrics.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/logweave/internal/logging"

// engineMetrics holds the engine's instruments. Instruments that fail to
// register stay nil and are skipped.
type engineMetrics struct {
	constructed metric.Int64Counter
	skipped     metric.Int64Counter
	storeSize   metric.Int64ObservableGauge
}

func newEngineMetrics(meter metric.Meter, store *Store, logger *zap.Logger) *engineMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &engineMetrics{}

	var err error
	m.constructed, err = meter.Int64Counter(
		"logweave.loggers.constructed_total",
		metric.WithDescription("Loggers constructed, labeled by logger name."),
		metric.WithUnit("{logger}"),
	)
	if err != nil {
		logger.Warn("failed to create constructed counter", zap.Error(err))
	}

	m.skipped, err = meter.Int64Counter(
		"logweave.transports.skipped_total",
		metric.WithDescription("Transports skipped because no driver is registered for them."),
		metric.WithUnit("{transport}"),
	)
	if err != nil {
		logger.Warn("failed to create skipped counter", zap.Error(err))
	}

	m.storeSize, err = meter.Int64ObservableGauge(
		"logweave.store.size",
		metric.WithDescription("Loggers currently held in the store."),
		metric.WithUnit("{logger}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(store.Len()))
			return nil
		}),
	)
	if err != nil {
		logger.Warn("failed to create store size gauge", zap.Error(err))
	}

	return m
}

func (m *engineMetrics) loggerConstructed(name string) {
	if m.constructed != nil {
		m.constructed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("logger", name)))
	}
}

func (m *engineMetrics) transportSkipped(name string, t Transport) {
	if m.skipped != nil {
		m.skipped.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("logger", name),
			attribute.String("transport", t.String()),
		))
	}
}
