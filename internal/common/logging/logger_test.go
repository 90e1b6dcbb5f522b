package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestZapLogger_WritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}

	logger.Info("decision made", String("entity_id", "ent-1"), Int("fraud_score", 40))

	out := buf.String()
	if !strings.Contains(out, "decision made") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, "ent-1") {
		t.Errorf("output missing field value: %s", out)
	}
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("info message leaked through warn-level filter")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing")
	}
}

func TestWithFields_PropagatesToChildren(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})

	child := logger.WithFields(String("component", "recorder"))
	child.Info("queued")

	if !strings.Contains(buf.String(), "recorder") {
		t.Errorf("child logger lost parent field: %s", buf.String())
	}
}

func TestGlobalLogger_Replaceable(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
	SetGlobalLogger(logger)

	Info("via global")

	if !strings.Contains(buf.String(), "via global") {
		t.Errorf("global logger did not receive message: %s", buf.String())
	}
}
