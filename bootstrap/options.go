package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/storage"
)

// Option configures the App during creation.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger          *logger.Logger
	storage         storage.Storage
	summary         io.Writer
	gracefulTimeout *time.Duration
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout overrides the configured shutdown timeout.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithStorage uses s for checkpoints instead of opening the configured
// provider. The app does not close it.
func WithStorage(s storage.Storage) Option {
	return func(o *appOptions) {
		o.storage = s
	}
}

// WithSummaryWriter sets where the startup summary is printed.
func WithSummaryWriter(w io.Writer) Option {
	return func(o *appOptions) {
		o.summary = w
	}
}
