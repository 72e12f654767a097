package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SetupLogFile creates a timestamped "<name>-<time>.log" file in dir and
// prunes older files of the same name so at most maxFiles remain.
// Returns the file handle (caller must close) or error.
func SetupLogFile(dir, name string, maxFiles int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.log", name,
		time.Now().Format("2006-01-02T15-04-05")))

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	// Cleanup failure is not fatal - logging still works
	if err := cleanupOldLogs(dir, name, maxFiles); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to cleanup old logs: %v\n", err)
	}

	return f, nil
}

// NewLogger builds the process logger: JSON to stdout (and logFile when
// non-nil), Debug level outside prod.
func NewLogger(cfg *Config, logFile io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" || cfg.Debug {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if logFile != nil {
		out = io.MultiWriter(os.Stdout, logFile)
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// cleanupOldLogs removes oldest log files when count exceeds maxFiles.
func cleanupOldLogs(dir, name string, maxFiles int) error {
	files, err := filepath.Glob(filepath.Join(dir, name+"-*.log"))
	if err != nil {
		return err
	}

	if maxFiles <= 0 || len(files) <= maxFiles {
		return nil
	}

	// Timestamp format sorts chronologically
	sort.Strings(files)

	for i := 0; i < len(files)-maxFiles; i++ {
		if err := os.Remove(files[i]); err != nil {
			return fmt.Errorf("remove %s: %w", files[i], err)
		}
	}

	return nil
}
