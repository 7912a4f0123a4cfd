package logging

import (
	"bytes"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/logweave/internal/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultNATSSubjectPrefix = "logs."
	defaultNATSFlushTimeout  = 2 * time.Second
)

// NATSOptions configures nats transports. Each formatted entry is
// published as one message on Subject, "logs.<logger>" by default.
type NATSOptions struct {
	URL     string          `koanf:"url"`
	Subject string          `koanf:"subject"`
	Token   config.Secret   `koanf:"token"`
	Timeout config.Duration `koanf:"timeout"`
}

// newNATSSink connects lazily: an unreachable server does not fail the
// build, messages are buffered by the client until it reconnects.
func (env *SinkEnv) newNATSSink(opts SinkOptions) (zapcore.Core, error) {
	var no NATSOptions
	if err := decodeOptions(opts.Options, &no); err != nil {
		return nil, fmt.Errorf("nats options: %w", err)
	}
	url := no.URL
	if url == "" {
		url = nats.DefaultURL
	}
	subject := no.Subject
	if subject == "" {
		subject = defaultNATSSubjectPrefix + opts.Logger
	}
	diag := env.Diagnostics.With(zap.String("logger", opts.Logger), zap.String("subject", subject))

	connOpts := []nats.Option{
		nats.Name("logweave/" + opts.Logger),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			diag.Warn("nats transport error", zap.Error(err))
		}),
	}
	if no.Token.IsSet() {
		connOpts = append(connOpts, nats.Token(no.Token.Value()))
	}
	nc, err := nats.Connect(url, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}

	timeout := no.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultNATSFlushTimeout
	}
	diag.Debug("nats transport configured", zap.String("url", url))

	w := &natsWriter{conn: nc, subject: subject, timeout: timeout, diag: diag}
	return newClosingCore(opts.Format, w, w, opts.Level.zapLevel()), nil
}

// natsWriter publishes each written line as one message.
type natsWriter struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
	diag    *zap.Logger
}

func (w *natsWriter) Write(p []byte) (int, error) {
	if w.conn.IsClosed() {
		return len(p), nil
	}
	if err := w.conn.Publish(w.subject, bytes.TrimSuffix(p, []byte("\n"))); err != nil {
		w.diag.Warn("nats transport publish failed", zap.Error(err))
	}
	return len(p), nil
}

// Sync waits until the server has processed everything published so far.
func (w *natsWriter) Sync() error {
	if !w.conn.IsConnected() {
		return nil
	}
	return w.conn.FlushTimeout(w.timeout)
}

// Close flushes what it can then closes the connection, stopping its
// reconnect and read goroutines.
func (w *natsWriter) Close() error {
	err := w.Sync()
	w.conn.Close()
	if err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}
