package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// logLevels maps the accepted logging.level spellings to slog levels.
var logLevels = map[string]slog.Level{
	"error":   slog.LevelError,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"info":    slog.LevelInfo,
	"debug":   slog.LevelDebug,
}

func parseLogLevel(level string) (slog.Level, error) {
	l, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return 0, fmt.Errorf("%w: log level %q (must be error, warn, info or debug)", ErrInputFormat, level)
	}
	return l, nil
}

// newLogger returns a text logger for cfg's level. The status line owns
// stdout, so callers pass stderr.
func newLogger(cfg LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
