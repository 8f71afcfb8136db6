package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn, FormatJSON)
	logger.SetOutput(&buf)

	logger.Info("should be dropped")
	logger.Warn("should be logged")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "should be logged") {
		t.Error("warn message missing")
	}
}

func TestLoggerFieldsAreImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(LevelInfo, FormatJSON)
	base.SetOutput(&buf)

	child := base.WithField("job", "tokens")
	child.Info("with field")
	base.Info("without field")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var first, second LogEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second line: %v", err)
	}

	if first.Fields["job"] != "tokens" {
		t.Errorf("child logger missing field, got %v", first.Fields)
	}
	if len(second.Fields) != 0 {
		t.Errorf("parent logger gained fields: %v", second.Fields)
	}
}

func TestFromContextFallback(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("FromContext returned nil")
	}

	var buf bytes.Buffer
	custom := NewLogger(LevelDebug, FormatText)
	custom.SetOutput(&buf)
	ctx := WithLogger(context.Background(), custom)

	FromContext(ctx).Debug("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Error("context logger not used")
	}
}

func TestParseHelpers(t *testing.T) {
	if ParseLogLevel("warning") != LevelWarn {
		t.Error("warning should parse to warn")
	}
	if ParseLogLevel("nonsense") != LevelInfo {
		t.Error("unknown level should default to info")
	}
	if ParseLogFormat("text") != FormatText {
		t.Error("text format should parse")
	}
	if ParseLogFormat("nonsense") != FormatJSON {
		t.Error("unknown format should default to json")
	}
}
