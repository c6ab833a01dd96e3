package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesFlatFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Info("task.status", map[string]any{
		"task_id":    "task-1",
		"percentage": 50,
	})

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "task.status" {
		t.Fatalf("unexpected message %q", entries[0].Message)
	}
	ctx := entries[0].ContextMap()
	if ctx["task_id"] != "task-1" {
		t.Fatalf("expected task_id field, got %v", ctx["task_id"])
	}
}

func TestErrorRendersErrorValuesAsStrings(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Error("source.failed", map[string]any{"error": errors.New("boom")})

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[0].Level)
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Fatalf("expected error string, got %v", got)
	}
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Debug("noise", nil)
	if observed.Len() != 0 {
		t.Fatalf("expected debug entry to be dropped")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
