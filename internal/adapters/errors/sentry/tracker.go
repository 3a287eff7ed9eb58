package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"costguardian/pkg/errors"
)

var _ errors.Tracker = (*Tracker)(nil)

const defaultFlushTimeout = 2 * time.Second

// Tracker implements error tracking via Sentry
type Tracker struct {
	hub *sentry.Hub
}

// Options configures the Sentry client
type Options struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string
}

// New creates a new Sentry tracker
func New(opts Options) (*Tracker, error) {
	if opts.DSN == "" {
		return nil, errors.NewValidationError("dsn", "is required", opts.DSN)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		ServerName:  opts.ServerName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to init sentry")
	}

	return &Tracker{
		hub: sentry.CurrentHub(),
	}, nil
}

// CaptureError sends an error to Sentry
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetTag("kind", classify(err))
	})

	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message to Sentry
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetLevel(convertLevel(level))
	})

	hub.CaptureMessage(message)
	return nil
}

// Flush waits for pending events until ctx is done or the default timeout passes
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := defaultFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !sentry.Flush(timeout) {
		return errors.Wrap(errors.ErrUnavailable, "sentry flush timed out")
	}
	return nil
}

// classify maps an error onto the sentinel it wraps for grouping in Sentry
func classify(err error) string {
	switch {
	case errors.Is(err, errors.ErrHistoryUnavailable):
		return "history_unavailable"
	case errors.Is(err, errors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, errors.ErrUnknownModel):
		return "unknown_model"
	case errors.Is(err, errors.ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

// convertLevel converts our level to Sentry level
func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelInfo:
		return sentry.LevelInfo
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
