package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// logDirEnv overrides the log directory; useful when the home
// directory is read-only or shared between machines.
const logDirEnv = "GRANTSCOUT_LOG_DIR"

// DefaultLogDir is the per-user log directory. One directory serves
// every corpus on the machine: which corpus an entry belongs to is in
// the entry, not the path. Defaults to ~/.grantscout/logs, overridable
// via GRANTSCOUT_LOG_DIR, with a temp-dir fallback when no home
// directory exists.
func DefaultLogDir() string {
	if dir := os.Getenv(logDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".grantscout", "logs")
	}
	return filepath.Join(home, ".grantscout", "logs")
}

// DefaultLogPath is the server log inside DefaultLogDir.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// EnsureLogDir creates dir and any missing parents.
func EnsureLogDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// FindLogFile resolves the log file to view: the explicit path when
// one was given, otherwise the default server log. The error names
// the path that was tried so the operator knows where to look.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file at %s; the server may not have run with --debug yet", path)
	}
	return path, nil
}
