package internal

import (
	"io"
	"log/slog"
	"strings"
)

// redactedKeys are attribute keys whose values never reach the log. Backend
// bearer tokens travel on the user and in Authorization headers.
var redactedKeys = map[string]bool{
	"authorization": true,
	"password":      true,
	"token":         true,
	"cookie":        true,
}

// NewLogger returns the service logger. Development gets readable text with
// source locations; everything else gets JSON. Unknown levels fall back to
// info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if env == "development" {
		opts.AddSource = true
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "taqa")
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
