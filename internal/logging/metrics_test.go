package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestEngineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	te := newTestEngine(t, &Options{
		Loggers: map[string]LoggerConfig{
			"app":    {Transports: []TransportSpec{consoleJSON()}},
			"legacy": {Transports: []TransportSpec{{Transport: Transport(77)}}},
		},
	}, WithMeter(provider.Meter(instrumentationName)))

	te.MustLogger("app")
	te.MustLogger("app")
	te.MustLogger("legacy")

	metrics := collect(t, reader)

	constructed, ok := metrics["logweave.loggers.constructed_total"]
	require.True(t, ok)
	sum, ok := constructed.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		name, _ := dp.Attributes.Value(attribute.Key("logger"))
		counts[name.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"app": 1, "legacy": 1}, counts)

	skipped, ok := metrics["logweave.transports.skipped_total"]
	require.True(t, ok)
	skippedSum := skipped.Data.(metricdata.Sum[int64])
	require.Len(t, skippedSum.DataPoints, 1)
	dp := skippedSum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)
	transport, _ := dp.Attributes.Value(attribute.Key("transport"))
	assert.Equal(t, "transport(77)", transport.AsString())

	size, ok := metrics["logweave.store.size"]
	require.True(t, ok)
	gauge := size.Data.(metricdata.Gauge[int64])
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
}

func TestEngineMetrics_NilMeterUsesGlobal(t *testing.T) {
	m := newEngineMetrics(nil, NewStore(), nopLogger("x").Underlying())
	assert.NotPanics(t, func() {
		m.loggerConstructed("x")
		m.transportSkipped("x", TransportHTTP)
	})
}
