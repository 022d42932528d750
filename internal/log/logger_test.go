package log

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAppLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     zerolog.Level
		log       func(l *AppLogger)
		message   string
		wantLevel string
		expectLog bool
	}{
		{"debug shown at debug level", zerolog.DebugLevel, func(l *AppLogger) { l.Debug("refresh in %ds", 1500) }, "refresh in 1500s", `"level":"debug"`, true},
		{"debug hidden at info level", zerolog.InfoLevel, func(l *AppLogger) { l.Debug("hidden") }, "hidden", "", false},
		{"info", zerolog.InfoLevel, func(l *AppLogger) { l.Info("listening on %s", ":4141") }, "listening on :4141", `"level":"info"`, true},
		{"warn", zerolog.InfoLevel, func(l *AppLogger) { l.Warn("models unavailable: %v", "timeout") }, "models unavailable: timeout", `"level":"warn"`, true},
		{"error", zerolog.InfoLevel, func(l *AppLogger) { l.Error("refresh failed: %d", 401) }, "refresh failed: 401", `"level":"error"`, true},
		{"info hidden at error level", zerolog.ErrorLevel, func(l *AppLogger) { l.Info("quiet") }, "quiet", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewAppLoggerWithConfig(&buf, tt.level)
			tt.log(logger)
			output := buf.String()
			if got := strings.Contains(output, tt.message); got != tt.expectLog {
				t.Fatalf("expected log output=%v, got %q", tt.expectLog, output)
			}
			if tt.expectLog && !strings.Contains(output, tt.wantLevel) {
				t.Errorf("expected %s in %q", tt.wantLevel, output)
			}
		})
	}
}

func TestAppLogger_NilSafety(t *testing.T) {
	var logger *AppLogger
	logger.Debug("no panic")
	logger.Info("no panic")
	logger.Warn("no panic")
	logger.Error("no panic")
	if err := logger.Close(); err != nil {
		t.Errorf("closing nil logger should not fail: %v", err)
	}
}

func TestAppLogger_CloseWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLoggerWithConfig(&buf, zerolog.InfoLevel)
	if err := logger.Close(); err != nil {
		t.Errorf("closing logger without file should not fail: %v", err)
	}
}

func TestContainsPathTraversal(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"absolute path", "/var/log/app.log", false},
		{"parent segment", "/var/../etc/passwd", true},
		{"relative parent", "../secret.txt", true},
		{"dot slash", "./local.log", true},
		{"windows parent", "..\\config.ini", true},
		{"empty", "", false},
		{"dotted file name", "/var/log/app.2024.log", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsPathTraversal(tt.path); got != tt.expected {
				t.Errorf("containsPathTraversal(%q) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		ginMode  string
		logLevel string
		expected zerolog.Level
	}{
		{"default", "release", "", zerolog.InfoLevel},
		{"gin debug forces debug", "debug", "error", zerolog.DebugLevel},
		{"explicit warn", "release", "WARN", zerolog.WarnLevel},
		{"garbage falls back to info", "release", "loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GIN_MODE", tt.ginMode)
			t.Setenv("LOG_LEVEL", tt.logLevel)
			if got := levelFromEnv(); got != tt.expected {
				t.Errorf("levelFromEnv() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestOpenDebugFile(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		t.Setenv("DEBUG_FILE", "")
		file, warning := openDebugFile()
		if file != nil || warning != "" {
			t.Errorf("expected nothing, got file=%v warning=%q", file, warning)
		}
	})

	t.Run("traversal rejected", func(t *testing.T) {
		t.Setenv("DEBUG_FILE", "../escape.log")
		file, warning := openDebugFile()
		if file != nil || warning == "" {
			t.Errorf("expected rejection warning, got file=%v warning=%q", file, warning)
		}
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "debug.log")
		t.Setenv("DEBUG_FILE", path)
		file, warning := openDebugFile()
		if file == nil {
			t.Fatalf("expected file, got warning %q", warning)
		}
		_ = file.Close()
	})
}
