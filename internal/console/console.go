// Package console collects log lines produced while rendering.
package console

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives one log line at a time. Implementations must be safe for
// concurrent use: engine output is pumped from several goroutines.
type Sink interface {
	Append(line string)
}

type SinkFunc func(line string)

func (f SinkFunc) Append(line string) { f(line) }

var Discard Sink = SinkFunc(func(string) {})

// Tee forwards every line to all sinks.
type Tee []Sink

func (t Tee) Append(line string) {
	for _, s := range t {
		s.Append(line)
	}
}

// Logf formats and appends a line.
func Logf(s Sink, format string, args ...any) {
	s.Append(fmt.Sprintf(format, args...))
}

// Buffer keeps timestamped lines in memory, like a log pane.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	now   func() time.Time
}

func NewBuffer() *Buffer {
	return &Buffer{now: time.Now}
}

func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	b.lines = append(b.lines, fmt.Sprintf("[%s] %s", now().Format("15:04:05"), line))
}

func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Latest returns the newest line without its timestamp.
func (b *Buffer) Latest() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return ""
	}
	last := b.lines[len(b.lines)-1]
	if i := strings.Index(last, "] "); i >= 0 {
		return last[i+2:]
	}
	return last
}

// Count returns how many lines contain substr.
func (b *Buffer) Count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, l := range b.lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}

// ZapSink writes lines through a zap sugared logger. Lines starting with
// "Error" or "Warning" are logged at the matching level.
type ZapSink struct {
	*zap.SugaredLogger
}

// NewZapSink builds a logger the same way for the CLI and for long-lived
// sessions. An empty file logs to stderr.
func NewZapSink(development, debug bool, file string) (*ZapSink, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// engine stderr is not a Go fault
	cfg.DisableStacktrace = true
	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapSinkFromLogger(logger), nil
}

// NewZapSinkFromLogger reports the caller of Append, not Append itself.
func NewZapSinkFromLogger(l *zap.Logger) *ZapSink {
	return &ZapSink{l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (z *ZapSink) Append(line string) {
	switch {
	case strings.HasPrefix(line, "Error"), strings.HasPrefix(line, "[Engine Error]"):
		z.Error(line)
	case strings.HasPrefix(line, "Warning"):
		z.Warn(line)
	default:
		z.Info(line)
	}
}
