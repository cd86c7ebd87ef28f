package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// LoggerOptions adjusts the levels chosen from Config.
type LoggerOptions struct {
	// Verbose lowers the level to debug.
	Verbose bool
	// QuietStderr limits stderr to errors, e.g. while a progress UI owns the terminal.
	QuietStderr bool
}

// SetupLogger builds the job logger: human-readable text on stderr and JSON
// lines in cfg.LogFile. The returned cleanup closes the log file.
func SetupLogger(cfg Config, opts LoggerOptions) (*slog.Logger, func() error) {
	level := cfg.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	stderrLevel := level
	if opts.QuietStderr {
		stderrLevel = slog.LevelError
	}
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: stderrLevel})

	if cfg.LogFile == "" {
		return slog.New(stderrHandler), func() error { return nil }
	}

	if dir := filepath.Dir(cfg.LogFile); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Warn("log file unavailable, logging to stderr only", "file", cfg.LogFile, "error", err)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	return logger, file.Close
}

// SetupLoggerWithWriters fans out to arbitrary writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
