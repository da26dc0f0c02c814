// Package logging sets up the stderr logger and the per-iteration
// convergence trace.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LevelTrace is one step below debug. Per-sublayer state is logged here.
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the convergence trace inside its directory.
const TraceFile = "decisions.jsonl"

var levels = map[string]slog.Level{
	"info":  slog.LevelInfo,
	"debug": slog.LevelDebug,
	"trace": LevelTrace,
}

// ParseLevel is case-insensitive and falls back to info.
func ParseLevel(s string) slog.Level {
	if lvl, ok := levels[strings.ToLower(s)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func labelTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: labelTrace,
	}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// traceAttr keeps the trace lines flat: the message becomes "event" and the
// level is dropped.
func traceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.LevelKey:
		return slog.Attr{}
	case slog.MessageKey:
		a.Key = "event"
	case slog.TimeKey:
		a.Value = slog.TimeValue(a.Value.Time().UTC())
	}
	return a
}

// DecisionLogger appends one JSON object per line to TraceFile. A nil
// *DecisionLogger discards everything.
type DecisionLogger struct {
	mu  sync.Mutex
	f   *os.File
	out *slog.Logger
}

// NewDecisionLogger returns nil unless level is debug or finer, or if
// dir/TraceFile cannot be opened.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	h := slog.NewJSONHandler(f, &slog.HandlerOptions{ReplaceAttr: traceAttr})
	return &DecisionLogger{f: f, out: slog.New(h)}
}

// Log records event with alternating key/value attrs, as slog does.
func (dl *DecisionLogger) Log(event string, attrs ...any) {
	if dl == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.f == nil {
		return
	}
	dl.out.Info(event, attrs...)
}

func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.f != nil {
		dl.f.Close()
		dl.f = nil
	}
}
