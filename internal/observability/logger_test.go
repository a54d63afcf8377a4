package observability

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies that parseLogLevel handles case, whitespace and
// unknown values from LOG_LEVEL.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"warning", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

// TestNewLogger_RespectsLogLevel verifies NewLogger builds a usable logger and
// picks up LOG_LEVEL from the environment.
func TestNewLogger_RespectsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
	if logger.Core().Enabled(zap.InfoLevel) {
		t.Error("info level enabled with LOG_LEVEL=error")
	}
	if !logger.Core().Enabled(zap.ErrorLevel) {
		t.Error("error level disabled with LOG_LEVEL=error")
	}
	_ = logger.Sync()
}
