package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/logweave/internal/config"
	"go.uber.org/multierr"
)

// Protocol selects the OTLP wire protocol.
type Protocol string

const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http/protobuf"
)

// Config configures OTLP export of engine traces and metrics. It is read
// from the "telemetry" key.
type Config struct {
	Enabled  bool     `koanf:"enabled"`
	Endpoint string   `koanf:"endpoint"`
	Protocol Protocol `koanf:"protocol"`

	// Insecure disables TLS. Only loopback endpoints may be insecure.
	Insecure      bool `koanf:"insecure"`
	TLSSkipVerify bool `koanf:"tls_skip_verify"`

	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// TraceRatio is the fraction of root spans sampled.
	TraceRatio float64 `koanf:"trace_ratio"`

	Metrics        bool            `koanf:"metrics"`
	MetricInterval config.Duration `koanf:"metric_interval"`

	ShutdownTimeout config.Duration `koanf:"shutdown_timeout"`
}

// NewDefaultConfig returns the defaults: disabled, exporting to a local
// collector over insecure gRPC when turned on.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Insecure:        true,
		ServiceName:     "logweave",
		ServiceVersion:  "dev",
		TraceRatio:      1,
		Metrics:         true,
		MetricInterval:  config.Duration(15 * time.Second),
		ShutdownTimeout: config.Duration(5 * time.Second),
	}
}

// Validate reports every problem with an enabled config.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	var err error
	if c.Endpoint == "" {
		err = multierr.Append(err, fmt.Errorf("endpoint is required"))
	} else if c.Insecure && !isLoopback(c.Endpoint) {
		err = multierr.Append(err, fmt.Errorf("insecure export to %s is not allowed; use TLS or a loopback endpoint", c.Endpoint))
	}
	if c.ServiceName == "" {
		err = multierr.Append(err, fmt.Errorf("service_name is required"))
	}
	switch c.Protocol {
	case "", ProtocolGRPC, ProtocolHTTP:
	default:
		err = multierr.Append(err, fmt.Errorf("protocol must be %s or %s, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol))
	}
	if c.TraceRatio < 0 || c.TraceRatio > 1 {
		err = multierr.Append(err, fmt.Errorf("trace_ratio must be within [0, 1], got %g", c.TraceRatio))
	}
	if c.Metrics && c.MetricInterval.Duration() <= 0 {
		err = multierr.Append(err, fmt.Errorf("metric_interval must be positive"))
	}
	if c.ShutdownTimeout.Duration() <= 0 {
		err = multierr.Append(err, fmt.Errorf("shutdown_timeout must be positive"))
	}
	return err
}

// isLoopback reports whether endpoint (host, host:port or URL) names the
// local machine.
func isLoopback(endpoint string) bool {
	host := hostPort(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
