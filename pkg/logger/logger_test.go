package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := InitWithWriter(nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	ctx := context.Background()
	Get().Info(ctx, "completion recorded",
		String("user_id", "42"),
		Int("points", 7),
		Bool("monthly", true),
		Error(errors.New("boom")),
	)

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["message"] != "completion recorded" {
		t.Errorf("unexpected message: %v", line["message"])
	}
	if line["user_id"] != "42" {
		t.Errorf("unexpected user_id: %v", line["user_id"])
	}
	if line["points"] != float64(7) {
		t.Errorf("unexpected points: %v", line["points"])
	}
	if line["error"] != "boom" {
		t.Errorf("unexpected error field: %v", line["error"])
	}
	src, _ := line["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source should point at the caller, got %q", src)
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	namedLogger := Named("reconciler")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	namedLogger.Warn(context.Background(), "test message")
	if !strings.Contains(buf.String(), `"logger":"reconciler"`) {
		t.Errorf("expected logger name in output, got %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = SetLevelString("info")
		_ = Init()
	}()

	for _, lvl := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q should be accepted: %v", lvl, err)
		}
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}

	_ = SetLevelString("error")
	Get().Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be suppressed at error level, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info(context.Background(), "discarded", String("k", "v"))
	l.Named("x").Debug(context.Background(), "discarded")
}
