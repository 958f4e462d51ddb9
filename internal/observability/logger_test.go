package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
	}{
		{"json to stdout", LoggingConfig{Level: "info", Format: "json"}},
		{"text to stderr", LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
		{"defaults", LoggingConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if NewLogger(tt.config) == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "info", Service: "kafeventsink"}, &buf)

	logger.Info("Batch inserted", "table", "events", "written_rows", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if entry["msg"] != "Batch inserted" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["service"] != "kafeventsink" {
		t.Errorf("service = %v, want kafeventsink", entry["service"])
	}
	if entry["table"] != "events" {
		t.Errorf("table = %v, want events", entry["table"])
	}
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "msg=\"test message\"") || !strings.Contains(output, "key=value") {
		t.Errorf("unexpected text output: %s", output)
	}
	if strings.Contains(output, "service=") {
		t.Errorf("service attribute should be absent: %s", output)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for _, dropped := range []string{"debug message", "info message"} {
		if strings.Contains(output, dropped) {
			t.Errorf("%q should be filtered at warn level", dropped)
		}
	}
	for _, kept := range []string{"warn message", "error message"} {
		if !strings.Contains(output, kept) {
			t.Errorf("%q should be logged at warn level", kept)
		}
	}
}

func TestLoggerAddSource(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{AddSource: true}, &buf)
	logger.Info("with source")

	if !strings.Contains(buf.String(), `"source"`) {
		t.Errorf("expected source attribute: %s", buf.String())
	}
}
