package logging

import "errors"

var (
	// ErrUnknownLevel is returned for level names outside the closed set.
	ErrUnknownLevel = errors.New("unknown log level")

	// ErrUnknownFormat is returned when a pipeline references a format
	// with no registered stage factory.
	ErrUnknownFormat = errors.New("unknown log format")

	// ErrUnknownTransport marks transports with no registered driver.
	// Loggers skip such transports; the error only appears in diagnostics.
	ErrUnknownTransport = errors.New("no driver for transport")

	// ErrLoggerNotConfigured is returned when a logger name has no entry
	// under loggers in the configuration.
	ErrLoggerNotConfigured = errors.New("logger not configured")

	// ErrNoDefaultLogger is returned when no name is given and no default
	// logger is configured.
	ErrNoDefaultLogger = errors.New("no default logger configured")

	// ErrLoggerNotFound is returned by Store.Update for absent names.
	ErrLoggerNotFound = errors.New("logger does not exist")
)
