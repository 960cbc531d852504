package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// New returns the process logger. Dev gets colourised tint output with source
// locations; any other environment gets JSON tagged with app and env.
// Durations are logged as strings such as "1.5s" in both.
func New(w io.Writer, appEnv string, level slog.Leveler, appName string) *slog.Logger {
	if appEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: durationsAsText,
	})
	return slog.New(h).With(
		"app", appName,
		"env", appEnv,
	)
}

// Component scopes logger to one part of the service. A nil logger means
// slog.Default().
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// durationsAsText renders time.Duration values with String instead of the
// JSON handler's integer nanoseconds.
func durationsAsText(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		a.Value = slog.StringValue(a.Value.Duration().String())
	}
	return a
}
