package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf}).WithComponent(ComponentProjector)

	logger.InfoContext(context.Background(), "Projection complete", FieldMonthKey, "2025-03")

	out := buf.String()
	if !strings.Contains(out, "component=projector") {
		t.Errorf("missing component in %q", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Errorf("component logged more than once in %q", out)
	}
	if !strings.Contains(out, "month_key=2025-03") {
		t.Errorf("missing month key in %q", out)
	}
}

func TestFromContext(t *testing.T) {
	logger := New(DefaultConfig()).WithComponent(ComponentWorker)
	ctx := WithContext(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Errorf("FromContext() returned a different logger")
	}
	if got := FromContext(context.Background()); got.Component() != ComponentApp {
		t.Errorf("FromContext() fallback component = %q, want %q", got.Component(), ComponentApp)
	}
}

func TestLogFieldsToSlice(t *testing.T) {
	got := NewFields().
		WithComponent(ComponentForecast).
		WithMonth("2025-03", "income").
		WithError(errors.New("boom")).
		ToSlice()

	want := []any{"component", "forecast", "error", "boom", "kind", "income", "month_key", "2025-03"}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() len = %d, want %d", len(got), len(want))
	}
	// keys are sorted
	if got[0] != "component" || got[2] != "error" || got[4] != "kind" || got[6] != "month_key" {
		t.Errorf("ToSlice() = %v", got)
	}
}

func TestLogFieldsWith(t *testing.T) {
	got := NewFields().WithOperation(OpProject).With(FieldReason, "rule saved").ToSlice()
	want := []any{"operation", "project", "reason", "rule saved"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToSlice() = %v, want %v", got, want)
		}
	}
}
