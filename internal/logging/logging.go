package logging

import (
	"io"
	"log/slog"
	"strings"
)

const timeLayout = "2006/01/02 15:04:05"

// ParseLevel maps "debug", "info", "warn", "error" (case-insensitive) to a
// slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger writing to out and installs it as slog's default.
// Text output is key=value; json selects the JSON handler.
func Setup(out io.Writer, level string, json bool) *slog.Logger {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
			return slog.String(slog.TimeKey, a.Value.Time().Format(timeLayout))
		}
		return a
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level), ReplaceAttr: replace}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
