package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var levelVar = new(slog.LevelVar)

// Setup installs a JSON logger writing to w as the slog default.
func Setup(w io.Writer, level string) (*slog.Logger, error) {
	if err := SetLevel(level); err != nil {
		return nil, err
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: levelVar,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// SetLevel changes the level of every logger returned by Setup.
func SetLevel(level string) error {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}
	if err := levelVar.UnmarshalText([]byte(normalized)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	return nil
}
