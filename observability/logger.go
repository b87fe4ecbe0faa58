// Package observability provides the structured logger, Prometheus
// metrics, and OpenTelemetry tracing shared across the broker, the
// client dispatcher, and the admin service.
package observability

import (
	"fmt"
	"log"
	"os"
)

// Logger is the structured logging interface threaded through every
// package that needs to report events. keysAndValues is an alternating
// key/value list, mirroring the convention used across the rest of
// this codebase's log call sites.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Bind returns a Logger that prepends fields to every subsequent
	// call, without mutating the receiver.
	Bind(fields ...any) Logger
}

// stdLogger is the default Logger, backed by the standard library's
// log package. It is not the only possible implementation: anything
// satisfying Logger (zap, zerolog, logr) can be substituted.
type stdLogger struct {
	l      *log.Logger
	fields []any
}

// NewStdLogger returns a Logger writing to stderr with a fixed prefix.
func NewStdLogger(prefix string) Logger {
	return &stdLogger{l: log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds)}
}

func (s *stdLogger) log(level, msg string, kv []any) {
	all := append(append([]any{}, s.fields...), kv...)
	s.l.Println(formatLogLine(level, msg, all))
}

func (s *stdLogger) Debug(msg string, kv ...any) { s.log("DEBUG", msg, kv) }
func (s *stdLogger) Info(msg string, kv ...any)  { s.log("INFO", msg, kv) }
func (s *stdLogger) Warn(msg string, kv ...any)  { s.log("WARN", msg, kv) }
func (s *stdLogger) Error(msg string, kv ...any) { s.log("ERROR", msg, kv) }

func (s *stdLogger) Bind(fields ...any) Logger {
	merged := append(append([]any{}, s.fields...), fields...)
	return &stdLogger{l: s.l, fields: merged}
}

func formatLogLine(level, msg string, kv []any) string {
	out := fmt.Sprintf("[%s] %s", level, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		out += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 == 1 {
		out += fmt.Sprintf(" %v=<missing>", kv[len(kv)-1])
	}
	return out
}

// NopLogger discards everything; useful for tests that don't care
// about log output but need a non-nil Logger.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any)     {}
func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (n nopLogger) Bind(...any) Logger     { return n }

// NopLogger returns a Logger whose methods are no-ops.
func NopLogger() Logger { return nopLogger{} }
