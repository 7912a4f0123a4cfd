package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collectSums(t *testing.T, reader sdkmetric.Reader) map[string][]metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string][]metricdata.DataPoint[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum.DataPoints
			}
		}
	}
	return out
}

func TestCollectorMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	out := &syncBuffer{}
	s, err := NewServer(testEngine(t, out), zap.NewNop(), nil, WithMeter(mp.Meter(collectorInstrumentationName)))
	require.NoError(t, err)

	post(t, s, "/api/v1/logs/app", `[{"level":"info","message":"a"},{"level":"nope","message":"b"}]`)
	post(t, s, "/api/v1/logs/missing", `{"message":"c"}`)

	sums := collectSums(t, reader)

	records := map[string]int64{}
	for _, dp := range sums["logweave.collector.records_total"] {
		outcome, _ := dp.Attributes.Value("outcome")
		logger, _ := dp.Attributes.Value("logger")
		assert.Equal(t, "app", logger.AsString())
		records[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"accepted": 1, "rejected": 1}, records)

	statuses := map[int64]int64{}
	for _, dp := range sums["logweave.collector.requests_total"] {
		status, _ := dp.Attributes.Value("status")
		statuses[status.AsInt64()] += dp.Value
	}
	assert.Equal(t, map[int64]int64{202: 1, 404: 1}, statuses)
}

func TestScrapeEndpoint(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Token = "s3cr3t"
	s, _ := setupTestServer(t, cfg)

	post(t, s, "/api/v1/logs/app", `[{"level":"info","message":"a"},{"level":"nope","message":"b"}]`,
		"Authorization", "Bearer s3cr3t")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `logweave_collector_records_total{logger="app",outcome="accepted"} 1`)
	assert.Contains(t, body, `logweave_collector_records_total{logger="app",outcome="rejected"} 1`)
	assert.Contains(t, body, "logweave_store_loggers 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", normalizePath(""))
	assert.Equal(t, "/api/v1/logs/:logger", normalizePath("/api/v1/logs/:logger"))
}
