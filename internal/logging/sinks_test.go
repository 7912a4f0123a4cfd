package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func buildTestSink(t *testing.T, env SinkEnv, tr Transport, so SinkOptions) zapcore.Core {
	t.Helper()
	ctor, ok := NewTransportRegistry(env).Resolve(tr)
	require.True(t, ok)
	if so.Format == nil {
		so.Format = jsonFormat
	}
	if so.Level == 0 {
		so.Level = DebugLevel
	}
	if so.Logger == "" {
		so.Logger = "sink"
	}
	core, err := ctor(so)
	require.NoError(t, err)
	return core
}

func sinkLogger(core zapcore.Core) *Logger {
	return newLogger("sink", zap.New(core).Named("sink"), DebugLevel, 1)
}

func TestConsoleSink(t *testing.T) {
	ctx := context.Background()

	t.Run("stdout by default", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		l := sinkLogger(buildTestSink(t, SinkEnv{Stdout: &stdout, Stderr: &stderr}, TransportConsole, SinkOptions{}))

		l.Error(ctx, "to stdout")

		assert.Equal(t, `{"level":"error","message":"to stdout"}`+"\n", stdout.String())
		assert.Empty(t, stderr.String())
	})

	t.Run("stderr", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		l := sinkLogger(buildTestSink(t, SinkEnv{Stdout: &stdout, Stderr: &stderr}, TransportDefault, SinkOptions{
			Options: map[string]any{"stderr": true},
		}))

		l.Info(ctx, "to stderr")

		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "to stderr")
	})

	t.Run("stderr levels", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		l := sinkLogger(buildTestSink(t, SinkEnv{Stdout: &stdout, Stderr: &stderr}, TransportConsole, SinkOptions{
			Options: map[string]any{"stderr_levels": []any{"error", "warn"}},
			Level:   InfoLevel,
		}))

		l.Error(ctx, "bad")
		l.Warn(ctx, "iffy")
		l.Info(ctx, "fine")
		l.Debug(ctx, "hidden")

		assert.Equal(t, 2, strings.Count(stderr.String(), "\n"))
		assert.Contains(t, stderr.String(), "bad")
		assert.Contains(t, stderr.String(), "iffy")
		assert.Equal(t, `{"level":"info","message":"fine"}`+"\n", stdout.String())
	})

	t.Run("invalid options", func(t *testing.T) {
		ctor, _ := NewTransportRegistry(SinkEnv{}).Resolve(TransportConsole)
		_, err := ctor(SinkOptions{Options: map[string]any{"stderr_levels": []any{"loud"}}})
		require.Error(t, err)
	})
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l := sinkLogger(buildTestSink(t, SinkEnv{}, TransportFile, SinkOptions{
		Filename: path,
		Options:  map[string]any{"max_size": 1},
		Level:    InfoLevel,
	}))

	l.Info(context.Background(), "first")
	l.Debug(context.Background(), "filtered")
	l.Warn(context.Background(), "second")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"level":"info","message":"first"}`+"\n"+`{"level":"warn","message":"second"}`+"\n",
		string(content))
}

func TestFileSink_RequiresFilename(t *testing.T) {
	ctor, _ := NewTransportRegistry(SinkEnv{}).Resolve(TransportFile)
	_, err := ctor(SinkOptions{Format: jsonFormat, Level: DebugLevel})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a filename")
}

func TestStreamSink(t *testing.T) {
	ctx := context.Background()

	t.Run("writer option", func(t *testing.T) {
		var buf bytes.Buffer
		l := sinkLogger(buildTestSink(t, SinkEnv{}, TransportStream, SinkOptions{
			Options: map[string]any{"stream": &buf},
		}))

		l.Info(ctx, "streamed")
		assert.Contains(t, buf.String(), `"message":"streamed"`)
	})

	t.Run("named stream", func(t *testing.T) {
		var stderr bytes.Buffer
		l := sinkLogger(buildTestSink(t, SinkEnv{Stderr: &stderr}, TransportStream, SinkOptions{
			Options: map[string]any{"name": "stderr"},
		}))

		l.Info(ctx, "named")
		assert.Contains(t, stderr.String(), `"message":"named"`)
	})

	t.Run("missing stream", func(t *testing.T) {
		ctor, _ := NewTransportRegistry(SinkEnv{}).Resolve(TransportStream)
		_, err := ctor(SinkOptions{Options: map[string]any{"name": "socket"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a stream")
	})
}

type received struct {
	body    string
	auth    string
	ctype   string
	tenant  string
	method  string
	urlPath string
}

func newCollector(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []received
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, received{
			body:    string(body),
			auth:    r.Header.Get("Authorization"),
			ctype:   r.Header.Get("Content-Type"),
			tenant:  r.Header.Get("X-Tenant"),
			method:  r.Method,
			urlPath: r.URL.Path,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), reqs...)
	}
}

func TestHTTPSink(t *testing.T) {
	srv, requests := newCollector(t, http.StatusNoContent)
	diag, diagLogs := observer.New(zapcore.DebugLevel)

	core := buildTestSink(t, SinkEnv{HTTPClient: srv.Client(), Diagnostics: zap.New(diag)}, TransportHTTP, SinkOptions{
		Options: map[string]any{
			"url":     srv.URL + "/ingest",
			"token":   "s3cr3t",
			"headers": map[string]any{"X-Tenant": "acme"},
			"timeout": "2s",
		},
	})
	l := sinkLogger(core)

	l.Info(context.Background(), "shipped", zap.Int("n", 1))
	l.Warn(context.Background(), "shipped again")
	require.NoError(t, core.Sync())

	reqs := requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/ingest", reqs[0].urlPath)
	assert.Equal(t, "application/json", reqs[0].ctype)
	assert.Equal(t, "Bearer s3cr3t", reqs[0].auth)
	assert.Equal(t, "acme", reqs[0].tenant)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[0].body), &doc))
	assert.Equal(t, "shipped", doc["message"])
	assert.Equal(t, float64(1), doc["n"])

	configured := diagLogs.FilterMessage("http transport configured").All()
	require.Len(t, configured, 1)
	for _, e := range diagLogs.All() {
		for k, v := range e.ContextMap() {
			assert.NotContains(t, toString(v), "s3cr3t", "diagnostic field %s leaked the token", k)
		}
	}
}

func toString(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestHTTPSink_DeliveryFailure(t *testing.T) {
	srv, requests := newCollector(t, http.StatusInternalServerError)
	diag, diagLogs := observer.New(zapcore.WarnLevel)

	core := buildTestSink(t, SinkEnv{HTTPClient: srv.Client(), Diagnostics: zap.New(diag)}, TransportHTTP, SinkOptions{
		Options: map[string]any{"url": srv.URL},
	})

	sinkLogger(core).Error(context.Background(), "lost")
	require.NoError(t, core.Sync())

	assert.Len(t, requests(), 1)
	failures := diagLogs.FilterMessage("http transport delivery failed").All()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ContextMap()["error"], "unexpected status 500")
}

func TestHTTPOptions_Endpoint(t *testing.T) {
	tests := []struct {
		name string
		opts HTTPOptions
		want string
	}{
		{"url wins", HTTPOptions{URL: "http://collector/x", Host: "ignored"}, "http://collector/x"},
		{"defaults", HTTPOptions{}, "http://localhost/"},
		{"assembled", HTTPOptions{SSL: true, Host: "logs.example.com", Port: 8443, Path: "v1/logs"}, "https://logs.example.com:8443/v1/logs"},
		{"leading slash kept", HTTPOptions{Host: "h", Path: "/in"}, "http://h/in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Endpoint())
		})
	}
}

func TestHTTPWriter_QueueFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	diag, diagLogs := observer.New(zapcore.WarnLevel)
	w := newHTTPWriter(srv.Client(), HTTPOptions{URL: srv.URL, Buffer: 1}, zap.New(diag))

	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte(`{"n":1}` + "\n"))
		require.NoError(t, err)
	}

	assert.NotZero(t, diagLogs.FilterMessage("http transport queue full, dropping entry").Len())
}

func TestHTTPWriter_Close(t *testing.T) {
	srv, requests := newCollector(t, http.StatusOK)
	w := newHTTPWriter(srv.Client(), HTTPOptions{URL: srv.URL}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte(`{"n":1}` + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	assert.Len(t, requests(), 3, "close waits for queued entries")

	n, err := w.Write([]byte(`{"n":2}` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	assert.Len(t, requests(), 3)
}

// fakeLoggerProvider records every emitted OTel log record.
type fakeLoggerProvider struct {
	embedded.LoggerProvider

	mu      sync.Mutex
	scopes  []string
	records []fakeRecord
}

type fakeRecord struct {
	body     string
	severity string
	attrs    map[string]string
}

func (p *fakeLoggerProvider) Logger(name string, _ ...log.LoggerOption) log.Logger {
	p.mu.Lock()
	p.scopes = append(p.scopes, name)
	p.mu.Unlock()
	return &fakeLogger{p: p}
}

func (p *fakeLoggerProvider) all() []fakeRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fakeRecord(nil), p.records...)
}

type fakeLogger struct {
	embedded.Logger
	p *fakeLoggerProvider
}

func (l *fakeLogger) Emit(_ context.Context, r log.Record) {
	rec := fakeRecord{
		body:     r.Body().AsString(),
		severity: r.SeverityText(),
		attrs:    make(map[string]string),
	}
	r.WalkAttributes(func(kv log.KeyValue) bool {
		rec.attrs[kv.Key] = kv.Value.String()
		return true
	})
	l.p.mu.Lock()
	l.p.records = append(l.p.records, rec)
	l.p.mu.Unlock()
}

func (l *fakeLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

func TestOTelSink(t *testing.T) {
	provider := &fakeLoggerProvider{}
	core := buildTestSink(t, SinkEnv{LoggerProvider: provider}, TransportOTel, SinkOptions{
		Logger: "orders",
		Level:  InfoLevel,
	})
	l := sinkLogger(core)

	l.Info(context.Background(), "order placed", zap.String("order.id", "o-1"))
	l.HTTP(context.Background(), "below threshold")

	assert.Equal(t, []string{"orders"}, provider.scopes)
	records := provider.all()
	require.Len(t, records, 1)
	assert.Equal(t, "order placed", records[0].body)
	assert.Equal(t, "info", records[0].severity)
	assert.Equal(t, "o-1", records[0].attrs["order.id"])
}

func TestDecodeOptions(t *testing.T) {
	var ho HTTPOptions
	require.NoError(t, decodeOptions(map[string]any{
		"host":       "collector",
		"port":       "4318",
		"ssl":        "true",
		"timeout":    "150ms",
		"rate_limit": 2.5,
		"token":      "abc",
	}, &ho))

	assert.Equal(t, "collector", ho.Host)
	assert.Equal(t, 4318, ho.Port)
	assert.True(t, ho.SSL)
	assert.Equal(t, "150ms", ho.Timeout.Duration().String())
	assert.Equal(t, 2.5, ho.RateLimit)
	assert.Equal(t, "abc", ho.Token.Value())
}
