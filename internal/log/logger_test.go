package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/felixgeelhaar/plancraft/internal/errors"
)

func jsonLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{Level: level, Format: FormatJSON, Output: NewOutput(buf)})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", line, err)
	}
	return entry
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level   Level
		logFunc func(*Logger)
		want    bool
	}{
		{LevelInfo, func(l *Logger) { l.Debug("x") }, false},
		{LevelInfo, func(l *Logger) { l.Info("x") }, true},
		{LevelWarn, func(l *Logger) { l.Info("x") }, false},
		{LevelWarn, func(l *Logger) { l.Error("x") }, true},
		{LevelDebug, func(l *Logger) { l.Debug("x") }, true},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(jsonLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("logged = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Output = NewOutput(&buf)
	New(cfg).Info("hello", "plan_id", "p1")

	entry := decodeLine(t, &buf)
	if entry["service"] != "plancraft" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["plan_id"] != "p1" {
		t.Errorf("plan_id = %v", entry["plan_id"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LevelInfo)

	err := fmt.Errorf("restore: %w", errors.NewCheckpointNotFoundError("cp-9"))
	logger.WithError(err).Info("failed")

	entry := decodeLine(t, &buf)
	if entry["error_code"] != "NF-005" {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if entry["error_kind"] != "not_found" {
		t.Errorf("error_kind = %v", entry["error_kind"])
	}
	if _, ok := entry["suggestions"]; !ok {
		t.Error("expected suggestions attribute")
	}
}

func TestWithErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, LevelInfo).WithError(fmt.Errorf("boom")).Info("failed")
	entry := decodeLine(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
	if _, ok := entry["error_code"]; ok {
		t.Error("plain errors must not carry an error code")
	}

	logger := jsonLogger(&buf, LevelInfo)
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LevelInfo)

	cause := fmt.Errorf("disk full")
	logger.LogError(context.Background(), "checkpoint failed", errors.Storage(errors.ErrCodeStoreWrite, "write checkpoint failed", cause))

	entry := decodeLine(t, &buf)
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["msg"] != "checkpoint failed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["cause"] != "disk full" {
		t.Errorf("cause = %v", entry["cause"])
	}

	buf.Reset()
	logger.LogError(context.Background(), "nothing", nil)
	if buf.Len() != 0 {
		t.Error("LogError(nil) should not log")
	}
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	jsonLogger(&buf, LevelInfo).WithContext(ctx).Info("traced")

	entry := decodeLine(t, &buf)
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}

	buf.Reset()
	logger := jsonLogger(&buf, LevelInfo)
	if logger.WithContext(context.Background()) != logger {
		t.Error("context without span should return the same logger")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: LevelInfo, Format: FormatText, Output: NewOutput(&buf)}).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output: %s", buf.String())
	}
}

func TestParseHelpers(t *testing.T) {
	if ParseLevel("WARNING") != LevelWarn || ParseLevel("nope") != LevelInfo || ParseLevel("trace") != LevelDebug {
		t.Error("ParseLevel mismatch")
	}
	if ParseFormat("console") != FormatText || ParseFormat("JSON") != FormatJSON {
		t.Error("ParseFormat mismatch")
	}
	if LevelError.String() != "ERROR" || Level(42).String() != "UNKNOWN" {
		t.Error("Level.String mismatch")
	}

	cfg := ConfigFrom("debug", "json", nil)
	if cfg.Level != LevelDebug || cfg.Format != FormatJSON {
		t.Errorf("ConfigFrom = %+v", cfg)
	}
	if ConfigFrom("", "", nil).Format != FormatText {
		t.Error("empty format should keep the default")
	}
}

func TestDefaultLoggerConcurrency(t *testing.T) {
	SetDefaultLogger(nil)
	var wg sync.WaitGroup
	loggers := make([]*Logger, 16)
	for i := range loggers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loggers[i] = DefaultLogger()
		}(i)
	}
	wg.Wait()
	for _, l := range loggers[1:] {
		if l != loggers[0] {
			t.Fatal("DefaultLogger returned different instances")
		}
	}

	custom := Discard()
	SetDefaultLogger(custom)
	if DefaultLogger() != custom {
		t.Error("SetDefaultLogger not honoured")
	}
	SetDefaultLogger(nil)
}
