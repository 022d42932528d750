package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"copilot-gateway/internal/core"
)

// AppLogger is the application logger implementation. It keeps the printf
// style of core.Logger and hands records to zerolog.
type AppLogger struct {
	logger     zerolog.Logger
	fileHandle *os.File
	mu         sync.Mutex
}

// NewAppLoggerWithConfig creates a logger writing JSON records to output.
func NewAppLoggerWithConfig(output io.Writer, level zerolog.Level) *AppLogger {
	return &AppLogger{
		logger: zerolog.New(output).With().Timestamp().Logger().Level(level),
	}
}

// Debug logs a message at DEBUG level.
func (l *AppLogger) Debug(format string, args ...any) {
	if l != nil {
		l.logger.Debug().Msgf(format, args...)
	}
}

// Info logs a message at INFO level.
func (l *AppLogger) Info(format string, args ...any) {
	if l != nil {
		l.logger.Info().Msgf(format, args...)
	}
}

// Warn logs a message at WARN level.
func (l *AppLogger) Warn(format string, args ...any) {
	if l != nil {
		l.logger.Warn().Msgf(format, args...)
	}
}

// Error logs a message at ERROR level.
func (l *AppLogger) Error(format string, args ...any) {
	if l != nil {
		l.logger.Error().Msgf(format, args...)
	}
}

// Fatal logs a message at FATAL level and terminates the process.
func (l *AppLogger) Fatal(format string, args ...any) {
	if l == nil {
		fmt.Fprintf(os.Stderr, "FATAL "+format+"\n", args...)
		os.Exit(1)
	}
	l.logger.Fatal().Msgf(format, args...)
}

// Close safely closes log file handle.
func (l *AppLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// containsPathTraversal checks if path contains path traversal sequences.
func containsPathTraversal(path string) bool {
	for _, pattern := range []string{"..", "./", ".\\"} {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// openDebugFile opens DEBUG_FILE for appending. A non-empty warning is
// returned when the variable is set but cannot be used.
func openDebugFile() (*os.File, string) {
	debugFile := os.Getenv("DEBUG_FILE")
	if debugFile == "" {
		return nil, ""
	}
	if len(debugFile) > core.MaxDebugFilePathLength {
		return nil, "DEBUG_FILE path too long, logging to stdout only"
	}
	if containsPathTraversal(debugFile) {
		return nil, "DEBUG_FILE contains path traversal characters, logging to stdout only"
	}

	//nolint:gosec // G304: path from env var, validated by containsPathTraversal
	file, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, core.FilePermissionReadWrite)
	if err != nil {
		return nil, fmt.Sprintf("failed to open DEBUG_FILE '%s': %v, logging to stdout only", debugFile, err)
	}
	return file, ""
}

// IsDebug returns whether the app is running in debug mode.
func IsDebug() bool {
	return os.Getenv("GIN_MODE") == "debug"
}

// levelFromEnv resolves LOG_LEVEL, with GIN_MODE=debug forcing debug output.
func levelFromEnv() zerolog.Level {
	if IsDebug() {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// CreateLogger creates a logger instance (for dependency injection).
func CreateLogger() *AppLogger {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}

	file, warning := openDebugFile()
	var output io.Writer = console
	if file != nil {
		output = zerolog.MultiLevelWriter(console, file)
	}

	logger := &AppLogger{
		logger:     zerolog.New(output).With().Timestamp().Logger().Level(levelFromEnv()),
		fileHandle: file,
	}
	if warning != "" {
		logger.Warn("%s", warning)
	}
	return logger
}

var _ core.Logger = (*AppLogger)(nil)
