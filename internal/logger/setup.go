package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// SetupLogger initializes the default logger from CLI settings. An empty path
// logs to stderr; the TUI passes a file so log lines never hit the screen.
func SetupLogger(level string, logJSON bool, path string) (io.Closer, error) {
	cfg := DefaultConfig()
	cfg.Level = LogLevel(strings.TrimSpace(level))
	cfg.JSON = logJSON
	cfg.AddSource = cfg.Level == DebugLevel
	if strings.TrimSpace(path) == "" {
		Init(cfg)
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	cfg.Output = f
	Init(cfg)
	return f, nil
}

func GetLoggerConfig(cmd *cobra.Command) (string, bool, string, error) {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return "", false, "", fmt.Errorf("failed to get log-level flag: %w", err)
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return "", false, "", fmt.Errorf("failed to get log-json flag: %w", err)
	}
	path, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return "", false, "", fmt.Errorf("failed to get log-file flag: %w", err)
	}
	return level, logJSON, path, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
