package logger

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// Option configures a logger created with New.
type Option func(*config)

type config struct {
	level   zapcore.Level
	json    bool
	caller  bool
	writers []io.Writer
}

// WithDebug sets the log level to Debug when true, Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = zapcore.DebugLevel
		} else {
			c.level = zapcore.InfoLevel
		}
	}
}

// WithJSON switches from the colored console encoder to JSON lines.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter overrides the output writer. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters sets multiple output writers.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithCaller includes the calling file:line in log output.
func WithCaller(caller bool) Option {
	return func(c *config) {
		c.caller = caller
	}
}
