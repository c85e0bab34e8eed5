package logging

import "log/slog"

// SetupMCPMode is SetupMCPModeWithLevel at debug level, the right
// setting for diagnosing a misbehaving server after the fact.
func SetupMCPMode() (func(), error) {
	return SetupMCPModeWithLevel("debug")
}

// SetupMCPModeWithLevel routes all logging to the server log file and
// installs the logger as the process default. Stdout and stderr stay
// untouched: in MCP mode stdout carries the JSON-RPC stream, and
// clients treat any stray byte there as protocol corruption.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("mcp_logging_ready",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", level))
	return cleanup, nil
}
