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
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
	}{
		{"info filters debug", "info", false},
		{"debug passes debug", "debug", true},
		{"trace passes debug", "trace", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("iteration")
			got := strings.Contains(buf.String(), "iteration")
			if got != tt.logAtDebug {
				t.Errorf("expected debug output %v, got %v (%q)", tt.logAtDebug, got, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "sublayer")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestNewDecisionLogger_InfoReturnsNil(t *testing.T) {
	dir := t.TempDir()
	if dl := NewDecisionLogger(dir, "info"); dl != nil {
		t.Errorf("expected nil decision logger at info level")
	}
	if _, err := os.Stat(filepath.Join(dir, TraceFile)); !os.IsNotExist(err) {
		t.Errorf("expected no trace file at info level")
	}
}

func TestDecisionLogger_Log(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "trace")
	if dl == nil {
		t.Fatal("expected decision logger at trace level")
	}

	dl.Log("iteration", "iteration", 1, "max_error", 12.5)
	dl.Log("iteration", "iteration", 2, "max_error", 1.5, "converged", true)
	dl.Close()
	dl.Log("iteration", "iteration", 3)

	data, err := os.ReadFile(filepath.Join(dir, TraceFile))
	if err != nil {
		t.Fatalf("reading trace: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("decoding line: %v", err)
	}
	if entry["event"] != "iteration" {
		t.Errorf("expected event iteration, got %v", entry["event"])
	}
	if entry["iteration"] != float64(2) || entry["converged"] != true {
		t.Errorf("unexpected attributes %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Errorf("expected time field")
	}
	if _, ok := entry["level"]; ok {
		t.Errorf("expected no level field, got %v", entry["level"])
	}
}

func TestDecisionLogger_NilSafe(t *testing.T) {
	var dl *DecisionLogger
	dl.Log("ignored")
	dl.Close()
}
