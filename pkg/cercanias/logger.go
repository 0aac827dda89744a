package cercanias

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the service logger from LogLevel and LogFormat
func NewLogger(w io.Writer, config Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(config.LogLevel)}

	if strings.EqualFold(config.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
