package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", &buf).WithComponent("controller").WithRun("r1")
	l.Info("remaining run", "remaining", 3)

	out := buf.String()
	for _, want := range []string{"component=controller", "run=r1", "remaining=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", &buf)
	l.Info("hidden")
	l.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record should be written")
	}
}
