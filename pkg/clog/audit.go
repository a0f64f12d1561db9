package clog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// NewLogger builds the default stderr text logger at the given level.
func NewLogger(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(NewAttributesHandler(handler))
}

// ParseLevel maps a configuration string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewAuditLogger opens the append-only audit trail at path and returns a JSON
// logger writing to it. Interceptor decisions are recorded here regardless of
// the allow/block outcome. The caller owns the returned closer.
func NewAuditLogger(path string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(NewAttributesHandler(handler)), f, nil
}
