package http

import (
	"github.com/fyrsmithlabs/logweave/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// scrapeMetrics are served on GET /metrics for Prometheus scrapers that
// do not go through an OTLP collector.
type scrapeMetrics struct {
	registry *prometheus.Registry
	records  *prometheus.CounterVec
}

func newScrapeMetrics(engine *logging.Engine) *scrapeMetrics {
	reg := prometheus.NewRegistry()
	m := &scrapeMetrics{
		registry: reg,
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logweave",
				Subsystem: "collector",
				Name:      "records_total",
				Help:      "Received log records by target logger and outcome",
			},
			[]string{"logger", "outcome"},
		),
	}

	reg.MustRegister(
		m.records,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "logweave",
				Subsystem: "store",
				Name:      "loggers",
				Help:      "Loggers currently cached in the store",
			},
			func() float64 { return float64(engine.Store().Len()) },
		),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *scrapeMetrics) recordIngest(logger string, resp IngestResponse) {
	if resp.Accepted > 0 {
		m.records.WithLabelValues(logger, "accepted").Add(float64(resp.Accepted))
	}
	if resp.Rejected > 0 {
		m.records.WithLabelValues(logger, "rejected").Add(float64(resp.Rejected))
	}
}

func (m *scrapeMetrics) handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
