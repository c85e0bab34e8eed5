package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls where log output lands and how much of it there is.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, or error.
	Level string
	// FilePath is the log file destination. Empty selects the default
	// server log under DefaultLogDir.
	FilePath string
	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int
	// MaxFiles is how many rotated generations are kept.
	MaxFiles int
	// WriteToStderr tees entries to stderr for interactive runs.
	WriteToStderr bool
}

// DefaultConfig is the standard file-logging setup: info level, 10MB
// rotation, five kept generations, stderr tee on.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup opens the sink described by cfg and returns a JSON logger
// writing to it, plus a cleanup that flushes and closes the file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultLogPath()
	}
	if err := EnsureLogDir(filepath.Dir(cfg.FilePath)); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var sink io.Writer = file
	if cfg.WriteToStderr {
		sink = io.MultiWriter(file, os.Stderr)
	}

	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})

	cleanup := func() {
		_ = file.Sync()
		_ = file.Close()
	}
	return slog.New(handler), cleanup, nil
}

// SetupDefault installs a debug-level file logger as the process
// default and returns its cleanup.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// ParseLevel maps a config level string to a slog.Level. Unknown
// values fall back to info rather than erroring: a typo in a config
// file should not take logging down with it.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
