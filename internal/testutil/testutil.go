// Package testutil holds shared test doubles for the broker and client
// packages: a scriptable MockTransport, a log-capturing MockLogger, and
// a MockClock for deadline-sensitive tests, mirroring the teacher's own
// coreengine/testutil mocks
// (_examples/Jeeves-Cluster-Organization-jeeves-core/coreengine/testutil/).
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/wire"
)

// MockLogger implements observability.Logger for testing, capturing
// every call instead of writing to stderr.
type MockLogger struct {
	mu   sync.Mutex
	logs []LogEntry
}

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  []any
}

// NewMockLogger creates an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(msg string, kv ...any) { m.log("debug", msg, kv) }
func (m *MockLogger) Info(msg string, kv ...any)  { m.log("info", msg, kv) }
func (m *MockLogger) Warn(msg string, kv ...any)  { m.log("warn", msg, kv) }
func (m *MockLogger) Error(msg string, kv ...any) { m.log("error", msg, kv) }

func (m *MockLogger) Bind(fields ...any) observability.Logger {
	return &boundMockLogger{parent: m, fields: fields}
}

func (m *MockLogger) log(level, msg string, kv []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, LogEntry{Level: level, Message: msg, Fields: append([]any{}, kv...)})
}

// Logs returns a copy of every entry captured so far.
func (m *MockLogger) Logs() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogEntry{}, m.logs...)
}

// HasLog reports whether a log at level with exactly message was captured.
func (m *MockLogger) HasLog(level, message string) bool {
	for _, e := range m.Logs() {
		if e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

// boundMockLogger prepends fields bound via Bind without mutating the parent.
type boundMockLogger struct {
	parent *MockLogger
	fields []any
}

func (b *boundMockLogger) Debug(msg string, kv ...any) { b.parent.log("debug", msg, append(b.fields, kv...)) }
func (b *boundMockLogger) Info(msg string, kv ...any)  { b.parent.log("info", msg, append(b.fields, kv...)) }
func (b *boundMockLogger) Warn(msg string, kv ...any)  { b.parent.log("warn", msg, append(b.fields, kv...)) }
func (b *boundMockLogger) Error(msg string, kv ...any) { b.parent.log("error", msg, append(b.fields, kv...)) }
func (b *boundMockLogger) Bind(fields ...any) observability.Logger {
	return &boundMockLogger{parent: b.parent, fields: append(append([]any{}, b.fields...), fields...)}
}

// MockTransport is a scriptable transport.Transport: Send appends to
// Sent, Recv pops from a queue the test feeds via QueueRecv, and
// Close marks the transport dead for both directions.
type MockTransport struct {
	mu     sync.Mutex
	queue  []wire.Message
	signal chan struct{}
	Sent   []wire.Message
	closed bool
	closeErr error
}

// NewMockTransport returns an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{signal: make(chan struct{}, 1)}
}

// QueueRecv appends msg to the queue a subsequent Recv call drains.
func (m *MockTransport) QueueRecv(msg wire.Message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *MockTransport) Recv(ctx context.Context) (wire.Message, error) {
	for {
		m.mu.Lock()
		if m.closed {
			err := m.closeErr
			m.mu.Unlock()
			return nil, err
		}
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, nil
		}
		m.mu.Unlock()

		select {
		case <-m.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *MockTransport) Send(ctx context.Context, msg wire.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.closeErr
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.closeErr == nil {
		m.closeErr = errClosed{}
	}
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// SentMessages returns a copy of everything handed to Send so far.
func (m *MockTransport) SentMessages() []wire.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wire.Message{}, m.Sent...)
}

type errClosed struct{}

func (errClosed) Error() string { return "testutil: mock transport closed" }

// MockClock lets deadline-sensitive tests control time.Now() through
// Now and Advance instead of racing real wall-clock sleeps. It has no
// timers.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock returns a MockClock starting at now.
func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now}
}

// Now returns the clock's current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
