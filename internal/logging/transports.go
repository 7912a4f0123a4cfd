// internal/logging/transports.go
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Transport identifies a sink driver.
type Transport int

const (
	TransportDefault Transport = iota
	TransportConsole
	TransportFile
	TransportHTTP
	TransportStream
	TransportOTel
	TransportNATS

	transportCount
)

const (
	// TransportPrebuilt marks sinks supplied through TransportSpec.Sink.
	TransportPrebuilt Transport = -1

	transportInvalid Transport = -2
)

var transportNames = [transportCount]string{
	TransportDefault: "default",
	TransportConsole: "console",
	TransportFile:    "file",
	TransportHTTP:    "http",
	TransportStream:  "stream",
	TransportOTel:    "otel",
	TransportNATS:    "nats",
}

func (t Transport) String() string {
	switch {
	case t == TransportPrebuilt:
		return "prebuilt"
	case t < 0 || t >= transportCount:
		return "transport(" + strconv.Itoa(int(t)) + ")"
	}
	return transportNames[t]
}

// IsConsole reports whether t writes to the console. The default
// transport is the console.
func (t Transport) IsConsole() bool {
	return t == TransportDefault || t == TransportConsole
}

// ParseTransport parses a transport name or numeric identifier.
func ParseTransport(s string) (Transport, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(name); err == nil {
		return Transport(n), nil
	}
	for i, n := range transportNames {
		if n == name {
			return Transport(i), nil
		}
	}
	return transportInvalid, fmt.Errorf("%w: %q", ErrUnknownTransport, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Transport) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to a transport with no driver, which loggers skip.
func (t *Transport) UnmarshalText(text []byte) error {
	parsed, _ := ParseTransport(string(text))
	*t = parsed
	return nil
}

// SinkOptions is what a SinkConstructor receives.
type SinkOptions struct {
	// Logger is the logical name of the logger being built.
	Logger string

	// Options are the transport options without the "format" key.
	Options map[string]any

	// Format is the built pipeline for this transport.
	Format Stage

	// Level is the threshold of this sink.
	Level Level

	// Filename is the resolved destination of file transports.
	Filename string
}

// SinkConstructor builds the core for one transport.
type SinkConstructor func(SinkOptions) (zapcore.Core, error)

// SinkEnv holds the process resources sinks write to.
type SinkEnv struct {
	Stdout         io.Writer
	Stderr         io.Writer
	HTTPClient     *http.Client
	LoggerProvider log.LoggerProvider
	Diagnostics    *zap.Logger
}

func (env *SinkEnv) setDefaults() {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.HTTPClient == nil {
		env.HTTPClient = http.DefaultClient
	}
	if env.Diagnostics == nil {
		env.Diagnostics = zap.NewNop()
	}
}

// TransportRegistry maps every Transport to its SinkConstructor.
type TransportRegistry struct {
	ctors [transportCount]SinkConstructor
}

// NewTransportRegistry returns a registry with the built-in drivers bound
// to env.
func NewTransportRegistry(env SinkEnv) *TransportRegistry {
	env.setDefaults()
	r := &TransportRegistry{}
	r.ctors = [transportCount]SinkConstructor{
		TransportDefault: env.newConsoleSink,
		TransportConsole: env.newConsoleSink,
		TransportFile:    env.newFileSink,
		TransportHTTP:    env.newHTTPSink,
		TransportStream:  env.newStreamSink,
		TransportOTel:    env.newOTelSink,
		TransportNATS:    env.newNATSSink,
	}
	return r
}

// Resolve returns the constructor for id, or false if there is none.
func (r *TransportRegistry) Resolve(id Transport) (SinkConstructor, bool) {
	if id < 0 || id >= transportCount {
		return nil, false
	}
	c := r.ctors[id]
	return c, c != nil
}

// Register replaces the constructor for a known transport. A nil
// constructor removes the driver.
func (r *TransportRegistry) Register(id Transport, ctor SinkConstructor) error {
	if id < 0 || id >= transportCount {
		return fmt.Errorf("%w: %s", ErrUnknownTransport, id)
	}
	r.ctors[id] = ctor
	return nil
}
