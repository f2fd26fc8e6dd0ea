package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerLevelsWriteExpectedOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug", "text")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"DEBUG", "dbg", "a=1"},
		{"INFO", "inf", "b=2"},
		{"WARN", "wrn", "c=3"},
		{"ERROR", "err", "d=4"},
	}
	for _, tc := range tests {
		if !strings.Contains(out, "level="+tc.level) || !strings.Contains(out, "msg="+tc.msg) || !strings.Contains(out, tc.attr) {
			t.Fatalf("expected %s line with %s in output:\n%s", tc.level, tc.attr, out)
		}
	}
}

func TestSlogLoggerWithAddsAttributesAsJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info", "json")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.With("component", "core").Info(context.Background(), "hello", "sku", "s1")
	log.Debug(context.Background(), "hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug to be filtered, got %d lines", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["component"] != "core" || entry["sku"] != "s1" {
		t.Fatalf("missing attributes: %v", entry)
	}
}

func TestParseLevelAndFormatErrors(t *testing.T) {
	if lvl, err := ParseLevel("WARNING"); err != nil || lvl != slog.LevelWarn {
		t.Fatalf("unexpected warn parse: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop().With("k", "v")
	l.Debug(context.Background(), "x")
	l.Error(context.Background(), "x")
}
