package logger

import (
	"fmt"
	"log/slog"
	"os"
)

type Loggers struct {
	InfoLogger  *slog.Logger
	DebugLogger *slog.Logger
	ErrorLogger *slog.Logger
}

// SetupLogger builds the three level-scoped loggers used across the layers.
// level is one of: debug, info, warn, error.
func SetupLogger(level string) (*Loggers, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %q", level)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	base := slog.New(handler)

	return &Loggers{
		InfoLogger:  base,
		DebugLogger: base,
		ErrorLogger: base,
	}, nil
}
