package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forager/internal/config"
	"forager/internal/services"
)

func TestNewJSONLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "forager.log")

	logger, err := New(Options{Level: "debug", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("ant completed", String(FieldUnit, "skype-messages"), Int("evidences", 12))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &payload); err != nil {
		t.Fatalf("decode log line %q: %v", data, err)
	}
	if payload["msg"] != "ant completed" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if payload[FieldUnit] != "skype-messages" {
		t.Fatalf("unexpected ant field: %v", payload[FieldUnit])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("expected ts field")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPrettyHandlerFormatsSubject(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false, false))

	logger.Info("evidence loaded",
		String(FieldComponent, "extraction"),
		Int64(FieldItemID, 7),
		String(FieldPhase, "extract"),
		String(FieldUnit, "emule-searches"),
		Int("count", 3),
		String("path", "/mnt/vol a/AC_SearchStrings.dat"),
	)

	line := buf.String()
	for _, want := range []string{
		"INFO [extraction] Item #7 (extract/emule-searches) – evidence loaded",
		"count=3",
		`path="/mnt/vol a/AC_SearchStrings.dat"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "item_id=") {
		t.Fatalf("subject fields should not repeat as attributes: %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false, false))

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "shown") {
		t.Fatalf("expected warn line: %q", out)
	}
}

func TestPrettyHandlerMultilineValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, new(slog.LevelVar), false, false))
	logger.Warn("decode failed", HexDump("bytes", []byte{0x0e, 0x01, 0x00, 0x00}, 0))

	out := buf.String()
	if !strings.Contains(out, "\n    bytes:\n") {
		t.Fatalf("expected indented multiline attribute: %q", out)
	}
	if !strings.Contains(out, "0e 01 00 00") {
		t.Fatalf("expected hex dump bytes: %q", out)
	}
}

func TestPrettyHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, new(slog.LevelVar), false, true))
	logger.Error("boom")
	if !strings.Contains(buf.String(), "\x1b[31mERROR\x1b[0m") {
		t.Fatalf("expected coloured level: %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithItemID(context.Background(), 42)
	ctx = services.WithPhase(ctx, "postprocess")
	ctx = services.WithRequestID(ctx, "run-1")

	WithContext(ctx, base).Info("hello")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[FieldItemID] != float64(42) {
		t.Fatalf("unexpected item id: %v", payload[FieldItemID])
	}
	if payload[FieldPhase] != "postprocess" {
		t.Fatalf("unexpected phase: %v", payload[FieldPhase])
	}
	if payload[FieldCorrelationID] != "run-1" {
		t.Fatalf("unexpected correlation id: %v", payload[FieldCorrelationID])
	}
}

func TestWarnWithContextAddsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	WarnWithContext(logger, "skipped", "ant_skipped")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[FieldEventType] != "ant_skipped" {
		t.Fatalf("unexpected event type: %v", payload[FieldEventType])
	}
	if payload[FieldErrorHint] == "" || payload[FieldErrorHint] == nil {
		t.Fatal("expected error hint")
	}
}

func TestOnceSetWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var once OnceSet
	for range 3 {
		once.Warn(logger, "tag:blink", "unknown markup tag", String("tag", "blink"))
	}
	once.Warn(logger, "tag:marquee", "unknown markup tag", String("tag", "marquee"))

	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", got, buf.String())
	}
	if once.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", once.Len())
	}
	once.Reset()
	if !once.First("tag:blink") {
		t.Fatal("expected key to be new after reset")
	}
}

func TestNewFromConfigCreatesLogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "log")
	cfg.Logging.Format = "json"

	logger, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("ready")

	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "forager.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		item, phase, unit string
		want              string
	}{
		{"3", "extract", "chromium-cookies", "Item #3 (extract/chromium-cookies)"},
		{"3", "", "", "Item #3"},
		{"", "postprocess", "", "postprocess"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		if got := FormatSubject(tt.item, tt.phase, tt.unit); got != tt.want {
			t.Errorf("FormatSubject(%q,%q,%q) = %q, want %q", tt.item, tt.phase, tt.unit, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2011, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	tests := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{name: "plain", value: slog.StringValue("LBSRC"), want: "LBSRC"},
		{name: "spaces", value: slog.StringValue("a b"), want: `"a b"`},
		{name: "empty", value: slog.StringValue(""), want: `""`},
		{name: "time in utc", value: slog.TimeValue(ts), want: "2011-03-04T04:06:07Z"},
		{name: "bytes", value: slog.AnyValue([]byte{0x0e, 0x01}), want: "0e01"},
		{name: "long bytes", value: slog.AnyValue(bytes.Repeat([]byte{0xab}, 40)), want: strings.Repeat("ab", maxInlineBytes) + "..."},
		{name: "int", value: slog.Int64Value(-3), want: "-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.value); got != tt.want {
				t.Fatalf("formatValue = %q, want %q", got, tt.want)
			}
		})
	}
}
