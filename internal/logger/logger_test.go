package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{zlog: zerolog.New(buf).With().Timestamp().Logger()}
}

func TestNewWithWriter_DevelopmentMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("development", &buf)

	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	logger.Debug("debug visible in development", nil)

	output := buf.String()
	if !strings.Contains(output, "debug visible in development") {
		t.Error("Expected debug output in development mode")
	}
	// Console writer output is not JSON
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(output), &entry); err == nil {
		t.Error("Expected console output in development mode")
	}
}

func TestNewWithWriter_ProductionMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("production", &buf)

	logger.Debug("hidden debug", nil)
	if buf.Len() != 0 {
		t.Errorf("Expected debug to be suppressed in production, got %q", buf.String())
	}

	logger.Info("visible info", map[string]interface{}{"years": 3})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got error: %v", err)
	}
	if entry["message"] != "visible info" {
		t.Errorf("Expected message field, got %v", entry["message"])
	}
	if entry["service"] != "pbb-obligations" {
		t.Errorf("Expected service field, got %v", entry["service"])
	}
}

func TestNew_ReturnsLogger(t *testing.T) {
	logger := New("production")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
	if logger.GetZerolog() == nil {
		t.Error("Expected zerolog instance to be available")
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Info("dropped", map[string]interface{}{"key": "value"})
	logger.Error("dropped", errors.New("boom"), nil)
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Info("info message", map[string]interface{}{
		"year":  "2024",
		"count": 5,
	})

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "2024") {
		t.Error("Expected log output to contain year field")
	}
}

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Warn("warning message", map[string]interface{}{
		"warning_type": "payment_unavailable",
	})

	output := buf.String()
	if !strings.Contains(output, "warning message") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "payment_unavailable") {
		t.Error("Expected log output to contain warning_type field")
	}
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	testErr := errors.New("upstream timeout")
	logger.Error("error occurred", testErr, map[string]interface{}{
		"operation": "detail",
	})

	output := buf.String()
	if !strings.Contains(output, "error occurred") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "upstream timeout") {
		t.Error("Expected log output to contain error message")
	}
	if !strings.Contains(output, "detail") {
		t.Error("Expected log output to contain operation field")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	childLogger := logger.With(map[string]interface{}{
		"component": "aggregator",
		"batch":     2,
	})

	childLogger.Info("test message", nil)

	output := buf.String()
	if !strings.Contains(output, "aggregator") {
		t.Error("Expected log output to contain component field from context")
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	childLogger := logger.WithRequestID("req-12345")
	childLogger.Info("request received", nil)

	output := buf.String()
	if !strings.Contains(output, `"request_id":"req-12345"`) {
		t.Errorf("Expected request_id field, got %s", output)
	}
}

func TestWithNOP(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithNOP("510203000102400180").Info("loading obligations", nil)

	output := buf.String()
	if !strings.Contains(output, `"nop":"510203000102400180"`) {
		t.Errorf("Expected nop field, got %s", output)
	}
}

func TestNilFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Info("message with nil fields", nil)

	if !strings.Contains(buf.String(), "message with nil fields") {
		t.Error("Expected message to be logged even with nil fields")
	}
}
