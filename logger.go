package reportio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug is for messages useful when diagnosing a failed run
	LevelDebug Level = iota
	// LevelInfo is for routine progress messages
	LevelInfo
	// LevelWarn is for recoverable anomalies such as empty query results
	LevelWarn
	// LevelError is for failures that abort a single operation
	LevelError
	// LevelCritical is for failures that abort the whole run
	LevelCritical
)

// slog has no critical level; place it above error.
const slogLevelCritical = slog.Level(12)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return slogLevelCritical
	default:
		return slog.LevelInfo
	}
}

// Logger is the single logging interface every collaborator depends on.
// Adapters exist for log/slog; any implementation with one Log method can
// be plugged in through WithLogger.
type Logger interface {
	Log(level Level, msg string)
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an existing slog logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	return &slogLogger{logger: logger}
}

// Log implements Logger.
func (s *slogLogger) Log(level Level, msg string) {
	s.logger.Log(context.Background(), level.slogLevel(), msg)
}

// handlerOptions builds slog options that render the critical level by name.
func handlerOptions(level Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level.slogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= slogLevelCritical {
					a.Value = slog.StringValue(LevelCritical.String())
				}
			}
			return a
		},
	}
}

// NewTextLogger returns a Logger writing slog text lines to w, filtering
// out messages below level.
func NewTextLogger(w io.Writer, level Level) Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(w, handlerOptions(level))))
}

// multiLogger fans one message out to several loggers.
type multiLogger []Logger

// MultiLogger combines loggers. Nil entries are skipped. A run typically
// mirrors info and above to the console and everything to a log file.
func MultiLogger(loggers ...Logger) Logger {
	out := make(multiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Log implements Logger.
func (m multiLogger) Log(level Level, msg string) {
	for _, l := range m {
		l.Log(level, msg)
	}
}

// discardLogger drops every message.
type discardLogger struct{}

func (discardLogger) Log(Level, string) {}

// switchWriter is an io.Writer whose destination can be swapped while
// loggers built on top of it stay in place. Renaming a report re-points its
// log mirror through this.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSwitchWriter(w io.Writer) *switchWriter {
	return &switchWriter{w: w}
}

// Write implements io.Writer.
func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}

// swap installs w as the destination and returns the previous one.
func (s *switchWriter) swap(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.w
	s.w = w
	return old
}

// logf formats through the narrow interface.
func logf(l Logger, level Level, format string, args ...any) {
	if l == nil {
		return
	}
	if len(args) == 0 {
		l.Log(level, format)
		return
	}
	l.Log(level, fmt.Sprintf(format, args...))
}
