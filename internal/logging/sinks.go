// internal/logging/sinks.go
package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/logweave/internal/config"
	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsoleOptions configures console transports.
type ConsoleOptions struct {
	// Stderr sends every entry to stderr.
	Stderr bool `koanf:"stderr"`

	// StderrLevels sends entries at these levels to stderr.
	StderrLevels []Level `koanf:"stderr_levels"`
}

// FileOptions configures file transports. Filename is relative to the
// project log directory.
type FileOptions struct {
	Filename   string `koanf:"filename"`
	MaxSize    int    `koanf:"max_size"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`
	Compress   bool   `koanf:"compress"`
}

// HTTPOptions configures HTTP transports.
type HTTPOptions struct {
	URL       string            `koanf:"url"`
	SSL       bool              `koanf:"ssl"`
	Host      string            `koanf:"host"`
	Port      int               `koanf:"port"`
	Path      string            `koanf:"path"`
	Headers   map[string]string `koanf:"headers"`
	Token     config.Secret     `koanf:"token"`
	Timeout   config.Duration   `koanf:"timeout"`
	RateLimit float64           `koanf:"rate_limit"`
	Buffer    int               `koanf:"buffer"`
}

// Endpoint returns URL, or the URL assembled from SSL, Host, Port and Path.
func (o HTTPOptions) Endpoint() string {
	if o.URL != "" {
		return o.URL
	}
	scheme := "http"
	if o.SSL {
		scheme = "https"
	}
	host := o.Host
	if host == "" {
		host = "localhost"
	}
	if o.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(o.Port))
	}
	path := o.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + host + path
}

// StreamOptions configures stream transports. The "stream" option may
// also hold an io.Writer when configured from code.
type StreamOptions struct {
	Name string `koanf:"name"`
}

// decodeOptions decodes transport options into out.
func decodeOptions(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "koanf",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func (env *SinkEnv) newConsoleSink(opts SinkOptions) (zapcore.Core, error) {
	var co ConsoleOptions
	if err := decodeOptions(opts.Options, &co); err != nil {
		return nil, fmt.Errorf("console options: %w", err)
	}

	stdout := zapcore.Lock(zapcore.AddSync(env.Stdout))
	stderr := zapcore.Lock(zapcore.AddSync(env.Stderr))
	threshold := opts.Level.zapLevel()

	if co.Stderr {
		return newPipelineCore(opts.Format, stderr, threshold), nil
	}
	if len(co.StderrLevels) == 0 {
		return newPipelineCore(opts.Format, stdout, threshold), nil
	}

	toStderr := make(map[zapcore.Level]bool, len(co.StderrLevels))
	for _, l := range co.StderrLevels {
		toStderr[l.zapLevel()] = true
	}
	return zapcore.NewTee(
		newPipelineCore(opts.Format, stdout, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return threshold.Enabled(l) && !toStderr[l]
		})),
		newPipelineCore(opts.Format, stderr, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return threshold.Enabled(l) && toStderr[l]
		})),
	), nil
}

func (env *SinkEnv) newFileSink(opts SinkOptions) (zapcore.Core, error) {
	var fo FileOptions
	if err := decodeOptions(opts.Options, &fo); err != nil {
		return nil, fmt.Errorf("file options: %w", err)
	}
	if opts.Filename == "" {
		return nil, fmt.Errorf("file transport requires a filename")
	}

	w := &lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    fo.MaxSize,
		MaxBackups: fo.MaxBackups,
		MaxAge:     fo.MaxAge,
		Compress:   fo.Compress,
	}
	return newClosingCore(opts.Format, zapcore.AddSync(w), w, opts.Level.zapLevel()), nil
}

func (env *SinkEnv) newStreamSink(opts SinkOptions) (zapcore.Core, error) {
	var w io.Writer
	if s, ok := opts.Options["stream"].(io.Writer); ok {
		w = s
	} else {
		var so StreamOptions
		if err := decodeOptions(opts.Options, &so); err != nil {
			return nil, fmt.Errorf("stream options: %w", err)
		}
		switch strings.ToLower(so.Name) {
		case "stdout":
			w = env.Stdout
		case "stderr":
			w = env.Stderr
		default:
			return nil, fmt.Errorf("stream transport requires a stream (got name %q)", so.Name)
		}
	}
	return newPipelineCore(opts.Format, zapcore.Lock(zapcore.AddSync(w)), opts.Level.zapLevel()), nil
}

// newOTelSink bridges entries to an OpenTelemetry LoggerProvider. Records
// are structured, so the pipeline does not apply.
func (env *SinkEnv) newOTelSink(opts SinkOptions) (zapcore.Core, error) {
	provider := env.LoggerProvider
	if provider == nil {
		provider = global.GetLoggerProvider()
	}
	core := otelzap.NewCore(opts.Logger, otelzap.WithLoggerProvider(provider))
	return withLevelFilter(core, opts.Level.zapLevel()), nil
}

func (env *SinkEnv) newHTTPSink(opts SinkOptions) (zapcore.Core, error) {
	var ho HTTPOptions
	if err := decodeOptions(opts.Options, &ho); err != nil {
		return nil, fmt.Errorf("http options: %w", err)
	}
	w := newHTTPWriter(env.HTTPClient, ho, env.Diagnostics.With(zap.String("logger", opts.Logger)))
	env.Diagnostics.Debug("http transport configured",
		zap.String("logger", opts.Logger),
		zap.String("endpoint", w.endpoint),
		Secret("token", ho.Token))
	return newClosingCore(opts.Format, w, w, opts.Level.zapLevel()), nil
}

const (
	defaultHTTPBuffer  = 256
	defaultHTTPTimeout = 5 * time.Second
)

// httpWriter posts every written line to an HTTP endpoint from a
// background goroutine. Writes never block; a full queue drops the line.
// Sync waits until queued lines have been delivered or failed. Close
// drains the queue and stops the goroutine; later writes are dropped.
type httpWriter struct {
	client   *http.Client
	endpoint string
	headers  map[string]string
	token    config.Secret
	timeout  time.Duration
	limiter  *rate.Limiter
	diag     *zap.Logger

	queue chan []byte

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	closed   bool
}

func newHTTPWriter(client *http.Client, o HTTPOptions, diag *zap.Logger) *httpWriter {
	size := o.Buffer
	if size <= 0 {
		size = defaultHTTPBuffer
	}
	timeout := o.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	w := &httpWriter{
		client:   client,
		endpoint: o.Endpoint(),
		headers:  o.Headers,
		token:    o.Token,
		timeout:  timeout,
		diag:     diag,
		queue:    make(chan []byte, size),
	}
	if o.RateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(o.RateLimit), 1)
	}
	w.idle = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *httpWriter) Write(p []byte) (int, error) {
	body := bytes.TrimRight(p, "\n")
	line := make([]byte, len(body))
	copy(line, body)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return len(p), nil
	}
	select {
	case w.queue <- line:
		w.inflight++
		w.mu.Unlock()
	default:
		w.mu.Unlock()
		w.diag.Warn("http transport queue full, dropping entry", zap.String("endpoint", w.endpoint))
	}
	return len(p), nil
}

// Close waits for queued entries then stops the delivery goroutine.
func (w *httpWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	for w.inflight > 0 {
		w.idle.Wait()
	}
	close(w.queue)
	return nil
}

// Sync blocks until every queued entry has been handled.
func (w *httpWriter) Sync() error {
	w.mu.Lock()
	for w.inflight > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()
	return nil
}

func (w *httpWriter) done() {
	w.mu.Lock()
	w.inflight--
	if w.inflight == 0 {
		w.idle.Broadcast()
	}
	w.mu.Unlock()
}

func (w *httpWriter) run() {
	for line := range w.queue {
		if err := w.post(line); err != nil {
			w.diag.Warn("http transport delivery failed",
				zap.String("endpoint", w.endpoint),
				zap.Error(err))
		}
		w.done()
	}
}

func (w *httpWriter) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	if w.token.IsSet() {
		req.Header.Set("Authorization", "Bearer "+w.token.Value())
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
