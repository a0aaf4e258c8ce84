package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
	stdout io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the JSON logger Run would otherwise build on stdout.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithStdout sets where commands write their primary output.
func WithStdout(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errors.New("config is required")
	}
	if err := app.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(app.stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}
