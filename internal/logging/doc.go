// Package logging builds named, cached loggers from configuration.
//
// # Overview
//
// An Engine reads Options (usually the "logger" subtree of a config
// tree) and builds each named logger on first use:
//   - every transport gets its own pipeline of formats
//   - the pipeline always starts with error expansion then a timestamp
//   - transports resolve to zap cores through a TransportRegistry
//   - loggers are cached in a Store, one instance per name
//
// # Usage
//
//	opts, err := logging.OptionsFromTree(tree)
//	if err != nil {
//	    return err
//	}
//	engine, err := logging.NewEngine(opts)
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	app, err := engine.Logger("app")
//	if err != nil {
//	    return err
//	}
//	app.Info(ctx, "request processed", zap.Duration("duration", d))
//
// Configuration:
//
//	logger:
//	  default: app
//	  disable_console: false
//	  loggers:
//	    app:
//	      level: info
//	      transports:
//	        - transport: console
//	          format: [timestamp, json]
//	        - transport: file
//	          format: logstash
//	          options:
//	            filename: app.log
//	            level: warn
//
// # Context views
//
// WithContext and WithoutContext always derive from the canonical logger,
// never from another view, and never modify it:
//
//	reqLog := app.WithContext(map[string]any{"user": id})
//	reqLog.Debug(ctx, "loaded profile")
//
// # Correlation
//
// Entries logged with a context carry the active span's trace_id and
// span_id, plus any IDs set with WithRequestID or WithSessionID.
//
// # Redaction
//
// With redaction enabled, sensitive keys and patterns are masked before
// any format stage runs. Setting redaction.secrets also masks credentials
// found by the rules in package secrets, such as cloud keys and tokens.
//
// # Levels
//
// Levels are ordered error < warn < info < http < verbose < debug. A sink
// at level L emits entries whose level is L or more severe.
//
// # Testing
//
// Use TestLogger for assertions, or NewObservedSink as a prebuilt sink:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, logging.InfoLevel, "test message")
//
// # Concurrency Safety
//
// Engines, loggers and stores are safe for concurrent use.
package logging
