package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Telemetry owns the trace and meter providers of one process.
//
// A signal whose exporter cannot be built is disabled and reported on the
// diagnostic logger; the other signals keep working.
type Telemetry struct {
	cfg      *Config
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	lp       log.LoggerProvider
	diag     *zap.Logger
	degraded bool
}

// Option configures New.
type Option func(*options)

type options struct {
	diag           *zap.Logger
	spanExporter   sdktrace.SpanExporter
	metricExporter sdkmetric.Exporter
}

// WithLogger sets the logger that reports disabled signals.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.diag = l }
}

// WithTraceExporter replaces the OTLP span exporter.
func WithTraceExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricExporter replaces the OTLP metric exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(o *options) { o.metricExporter = exp }
}

// New builds providers for cfg and installs them as the OTel globals.
// A disabled config yields an instance that hands out global providers.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	o := options{diag: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{cfg: cfg, diag: o.diag}
	if !cfg.Enabled {
		return t, nil
	}
	res := newResource(cfg)

	spanExp := o.spanExporter
	if spanExp == nil {
		if exp, err := newSpanExporter(ctx, cfg); err != nil {
			t.disable("traces", err)
		} else {
			spanExp = exp
		}
	}
	if spanExp != nil {
		t.tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.TraceRatio)),
		)
		otel.SetTracerProvider(t.tp)
	}

	if cfg.Metrics {
		metricExp := o.metricExporter
		if metricExp == nil {
			if exp, err := newMetricExporter(ctx, cfg); err != nil {
				t.disable("metrics", err)
			} else {
				metricExp = exp
			}
		}
		if metricExp != nil {
			t.mp = sdkmetric.NewMeterProvider(
				sdkmetric.WithResource(res),
				sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
					sdkmetric.WithInterval(cfg.MetricInterval.Duration()))),
			)
			otel.SetMeterProvider(t.mp)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

func (t *Telemetry) disable(signal string, err error) {
	t.degraded = true
	t.diag.Warn("telemetry signal disabled", zap.String("signal", signal), zap.Error(err))
}

// Tracer returns a tracer from the owned provider, or the global one.
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if t == nil || t.tp == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tp.Tracer(name, opts...)
}

// Meter returns a meter from the owned provider, or the global one.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.mp == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.mp.Meter(name, opts...)
}

// LoggerProvider returns the provider for the otel transport, or nil so
// the transport falls back to the global provider.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.lp
}

// SetLoggerProvider sets the provider handed to the otel transport.
func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t != nil {
		t.lp = lp
	}
}

// Enabled reports whether export was configured.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.cfg != nil && t.cfg.Enabled
}

// Degraded reports whether a signal was disabled by an exporter error.
func (t *Telemetry) Degraded() bool {
	return t != nil && t.degraded
}

// ForceFlush exports everything pending.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var err error
	if t.tp != nil {
		err = multierr.Append(err, t.tp.ForceFlush(ctx))
	}
	if t.mp != nil {
		err = multierr.Append(err, t.mp.ForceFlush(ctx))
	}
	return err
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.cfg != nil && t.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout.Duration())
		defer cancel()
	}

	var err error
	if t.tp != nil {
		if e := t.tp.Shutdown(ctx); e != nil {
			err = multierr.Append(err, fmt.Errorf("trace provider: %w", e))
		}
	}
	if t.mp != nil {
		if e := t.mp.Shutdown(ctx); e != nil {
			err = multierr.Append(err, fmt.Errorf("meter provider: %w", e))
		}
	}
	return err
}
