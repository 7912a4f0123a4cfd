package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const collectorInstrumentationName = "github.com/fyrsmithlabs/logweave/internal/http"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// CollectorMetrics records collector traffic as OTel instruments. An
// instrument that cannot be created is replaced by a no-op.
type CollectorMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	records  metric.Int64Counter
}

// NewCollectorMetrics creates metrics on the global meter provider.
func NewCollectorMetrics(logger *zap.Logger) *CollectorMetrics {
	return newCollectorMetrics(nil, logger)
}

func newCollectorMetrics(meter metric.Meter, logger *zap.Logger) *CollectorMetrics {
	if meter == nil {
		meter = otel.Meter(collectorInstrumentationName)
	}
	fallback := noop.NewMeterProvider().Meter(collectorInstrumentationName)

	var errs, err error
	m := &CollectorMetrics{}
	if m.requests, err = meter.Int64Counter("logweave.collector.requests_total",
		metric.WithDescription("Collector HTTP requests by method, endpoint and status"),
		metric.WithUnit("{request}")); err != nil {
		errs = multierr.Append(errs, err)
		m.requests, _ = fallback.Int64Counter("requests")
	}
	if m.duration, err = meter.Float64Histogram("logweave.collector.request_duration_seconds",
		metric.WithDescription("Collector HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		errs = multierr.Append(errs, err)
		m.duration, _ = fallback.Float64Histogram("duration")
	}
	if m.inFlight, err = meter.Int64UpDownCounter("logweave.collector.active_requests",
		metric.WithDescription("In-flight collector requests"),
		metric.WithUnit("{request}")); err != nil {
		errs = multierr.Append(errs, err)
		m.inFlight, _ = fallback.Int64UpDownCounter("in_flight")
	}
	if m.records, err = meter.Int64Counter("logweave.collector.records_total",
		metric.WithDescription("Received log records by logger and outcome"),
		metric.WithUnit("{record}")); err != nil {
		errs = multierr.Append(errs, err)
		m.records, _ = fallback.Int64Counter("records")
	}

	if errs != nil && logger != nil {
		logger.Warn("collector metrics partially disabled", zap.Error(errs))
	}
	return m
}

// MetricsMiddleware records count, duration and in-flight gauge for every
// request. Handler errors are resolved to a response here so the recorded
// status is the one sent.
func (m *CollectorMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)

			if err := next(c); err != nil {
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status))
			m.requests.Add(ctx, 1, attrs)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			return nil
		}
	}
}

func (m *CollectorMetrics) recordIngest(ctx context.Context, logger string, resp IngestResponse) {
	for outcome, n := range map[string]int{"accepted": resp.Accepted, "rejected": resp.Rejected} {
		if n == 0 {
			continue
		}
		m.records.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("logger", logger),
			attribute.String("outcome", outcome)))
	}
}

// normalizePath maps the unrouted path to "/". Routed paths are already
// templates such as /api/v1/logs/:logger.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
