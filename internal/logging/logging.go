package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process logger, installs it as the slog default and
// returns it. Level is one of debug, info, warn, error (case-insensitive,
// info when unrecognized). Format "json" selects JSON output; anything else
// is logfmt-style text.
func Setup(level, format string) *slog.Logger {
	return New(os.Stderr, level, format, true)
}

// New builds a logger writing to w. When setDefault is true it also becomes
// the slog default.
func New(w io.Writer, level, format string, setDefault bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if setDefault {
		slog.SetDefault(logger)
	}
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
