// internal/logging/engine.go
package logging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/logweave/internal/project"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/singleflight"
)

// LogDir is where file transports write, relative to the project root.
var LogDir = filepath.Join("storage", "logs")

// Engine builds named loggers from Options and caches them in a Store.
type Engine struct {
	opts       Options
	formats    *FormatRegistry
	transports *TransportRegistry
	store      *Store
	diag       *zap.Logger
	metrics    *engineMetrics
	group      singleflight.Group

	rootOnce sync.Once
	root     string
}

// Option configures an Engine.
type Option func(*engineSettings)

type engineSettings struct {
	env        SinkEnv
	store      *Store
	root       string
	meter      metric.Meter
	formats    map[Format]StageFactory
	transports map[Transport]SinkConstructor
}

// WithStore uses s instead of a fresh store.
func WithStore(s *Store) Option {
	return func(es *engineSettings) { es.store = s }
}

// WithDiagnostics sets the logger that receives engine diagnostics such
// as skipped transports and failed HTTP deliveries.
func WithDiagnostics(l *zap.Logger) Option {
	return func(es *engineSettings) { es.env.Diagnostics = l }
}

// WithProjectRoot sets the directory file transports resolve against.
// Without it the root is discovered from the working directory.
func WithProjectRoot(dir string) Option {
	return func(es *engineSettings) { es.root = dir }
}

// WithOutput replaces the process stdout and stderr used by console and
// stream transports.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(es *engineSettings) {
		es.env.Stdout = stdout
		es.env.Stderr = stderr
	}
}

// WithHTTPClient sets the client used by HTTP transports.
func WithHTTPClient(c *http.Client) Option {
	return func(es *engineSettings) { es.env.HTTPClient = c }
}

// WithLoggerProvider sets the provider used by the OTel transport.
// Without it the global provider is used.
func WithLoggerProvider(p log.LoggerProvider) Option {
	return func(es *engineSettings) { es.env.LoggerProvider = p }
}

// WithMeter sets the meter engine metrics are recorded on.
func WithMeter(m metric.Meter) Option {
	return func(es *engineSettings) { es.meter = m }
}

// WithTransport replaces the driver for id. A nil constructor removes it.
func WithTransport(id Transport, ctor SinkConstructor) Option {
	return func(es *engineSettings) {
		if es.transports == nil {
			es.transports = make(map[Transport]SinkConstructor)
		}
		es.transports[id] = ctor
	}
}

// WithFormat replaces the stage factory for id.
func WithFormat(id Format, factory StageFactory) Option {
	return func(es *engineSettings) {
		if es.formats == nil {
			es.formats = make(map[Format]StageFactory)
		}
		es.formats[id] = factory
	}
}

// NewEngine creates an engine for opts. A nil opts configures no loggers.
func NewEngine(opts *Options, options ...Option) (*Engine, error) {
	var es engineSettings
	for _, o := range options {
		o(&es)
	}
	if es.env.Stderr == nil {
		es.env.Stderr = os.Stderr
	}
	if es.env.Diagnostics == nil {
		es.env.Diagnostics = newDiagnostics(es.env.Stderr)
	}
	if es.store == nil {
		es.store = NewStore()
	}
	if es.store.closeErr == nil {
		diag := es.env.Diagnostics
		es.store.closeErr = func(name string, err error) {
			diag.Warn("failed to close dropped logger", zap.String("logger", name), zap.Error(err))
		}
	}

	e := &Engine{
		formats:    NewFormatRegistry(),
		transports: NewTransportRegistry(es.env),
		store:      es.store,
		diag:       es.env.Diagnostics,
		root:       es.root,
	}
	if opts != nil {
		e.opts = *opts
	}
	if e.opts.Loggers == nil {
		e.opts.Loggers = make(map[string]LoggerConfig)
	}

	for id, f := range es.formats {
		if err := e.formats.Register(id, f); err != nil {
			return nil, err
		}
	}
	for id, c := range es.transports {
		if err := e.transports.Register(id, c); err != nil {
			return nil, err
		}
	}

	e.metrics = newEngineMetrics(es.meter, e.store, e.diag)
	return e, nil
}

// newDiagnostics returns the default diagnostic logger: JSON at warn.
func newDiagnostics(w io.Writer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.WarnLevel,
	)
	return zap.New(core).Named("logweave")
}

// Logger returns the logger configured under name, building and caching
// it on first use. Without a name the configured default is used.
//
// At most one construction runs per name; concurrent callers receive the
// same instance.
func (e *Engine) Logger(name ...string) (*Logger, error) {
	n := ""
	if len(name) > 0 {
		n = name[0]
	}
	if n == "" {
		n = e.opts.Default
		if n == "" {
			return nil, ErrNoDefaultLogger
		}
	}

	if l, ok := e.store.Get(n); ok {
		return l, nil
	}

	cfg, ok := e.opts.Loggers[n]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLoggerNotConfigured, n)
	}

	v, err, _ := e.group.Do(n, func() (any, error) {
		if l, ok := e.store.Get(n); ok {
			return l, nil
		}
		l, err := e.MakeLogger(n, cfg)
		if err != nil {
			return nil, err
		}
		e.store.Create(n, l)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Logger), nil
}

// MustLogger is like Logger but panics on error.
func (e *Engine) MustLogger(name ...string) *Logger {
	l, err := e.Logger(name...)
	if err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return l
}

// Log emits payload through the default logger. The level defaults to
// debug; an unknown level returns ErrUnknownLevel.
func (e *Engine) Log(ctx context.Context, payload any, level ...string) error {
	lvl := DebugLevel.String()
	if len(level) > 0 && level[0] != "" {
		lvl = level[0]
	}
	if _, err := ParseLevel(lvl); err != nil {
		return err
	}
	l, err := e.Logger()
	if err != nil {
		return err
	}
	return l.Log(ctx, lvl, payload)
}

// Store returns the engine's logger store.
func (e *Engine) Store() *Store {
	return e.store
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Configured returns the configured logger names.
func (e *Engine) Configured() []string {
	names := make([]string, 0, len(e.opts.Loggers))
	for n := range e.opts.Loggers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Formats returns the engine's format registry.
func (e *Engine) Formats() *FormatRegistry {
	return e.formats
}

// Transports returns the engine's transport registry.
func (e *Engine) Transports() *TransportRegistry {
	return e.transports
}

// Close flushes and closes every stored logger and empties the store.
// Loggers obtained earlier drop entries after Close; Logger builds new ones.
func (e *Engine) Close() error {
	var errs error
	for name, l := range e.store.drain() {
		if err := l.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("logger %q: %w", name, err))
		}
	}
	return errs
}

// Sync flushes every stored logger.
func (e *Engine) Sync() error {
	var errs error
	for _, l := range e.store.All() {
		errs = multierr.Append(errs, l.Sync())
	}
	return errs
}

// projectRoot returns the configured root or discovers it once.
func (e *Engine) projectRoot() string {
	e.rootOnce.Do(func() {
		if e.root != "" {
			return
		}
		wd, err := os.Getwd()
		if err != nil {
			e.diag.Warn("failed to get working directory", zap.Error(err))
			e.root = "."
			return
		}
		root, err := project.FindRoot(wd)
		if err != nil {
			e.diag.Warn("project root not found, using working directory",
				zap.String("dir", wd),
				zap.Error(err))
			root = wd
		}
		e.root = root
	})
	return e.root
}

// logPath resolves a file transport filename under <root>/storage/logs.
// Absolute names are taken relative to that directory too; names that
// resolve outside it are rejected.
func (e *Engine) logPath(filename string) (string, error) {
	if filename == "" {
		return "", nil
	}
	dir := filepath.Join(e.projectRoot(), LogDir)
	p := filepath.Join(dir, filename)
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("filename %q escapes the log directory", filename)
	}
	return p, nil
}
