package utils

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// setupTestLogger points the package logger at output.
func setupTestLogger(output *bytes.Buffer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	SetLoggerForTest(zerolog.New(output).With().Timestamp().Logger().Level(lvl))
}

func TestInfoLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "info")

	Info("saved", "path", "logo.png", "bytes", 42)

	out := buf.String()
	if !strings.Contains(out, "saved") {
		t.Error("Expected log message not found in output")
	}
	if !strings.Contains(out, `"path":"logo.png"`) || !strings.Contains(out, `"bytes":42`) {
		t.Error("Expected key-value pairs not found in output")
	}
}

func TestWarnLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	Warn("invalid format", "format", "gif")

	if !strings.Contains(buf.String(), "invalid format") || !strings.Contains(buf.String(), `"format":"gif"`) {
		t.Error("Warn log output missing expected content")
	}
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "error")

	Error("conversion failed", "fatal", false)

	if !strings.Contains(buf.String(), "conversion failed") || !strings.Contains(buf.String(), `"fatal":false`) {
		t.Error("Error log output missing expected content")
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "info")

	Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	SetLogLevel("info")
	Info("should be visible")

	if !strings.Contains(buf.String(), "should be visible") {
		t.Error("Expected info log after SetLogLevel not found")
	}
}

func TestInitLoggerAndSetLogLevelFallback(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "svg2img.log")
	InitLogger(logFile, 1, 1, 1, false, "invalid")
	SetLogLevel("invalid")
	Info("hello", "k", "v")
	Warn("warn")
	Error("error")
}

func TestDefaultLoggerIsInfo(t *testing.T) {
	if lvl := defaultLogger().GetLevel(); lvl != zerolog.InfoLevel {
		t.Errorf("default level = %s, want info", lvl)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "debug")

	ctx := WithFields(context.Background(), "run_id", "abc")
	ctx = WithFields(ctx, "format", "png")
	FromContext(ctx).Info("saved", "path", "logo.png")
	FromContext(context.Background()).Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	for _, want := range []string{`"run_id":"abc"`, `"format":"png"`, `"path":"logo.png"`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %s", lines[0], want)
		}
	}
	if strings.Contains(lines[1], "run_id") {
		t.Errorf("background logger picked up fields: %q", lines[1])
	}
}
