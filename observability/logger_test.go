package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLogLinePairsKeysAndValues(t *testing.T) {
	line := formatLogLine("INFO", "conn_accepted", []any{"conn", 7, "remote", "127.0.0.1:9"})
	assert.Equal(t, "[INFO] conn_accepted conn=7 remote=127.0.0.1:9", line)
}

func TestFormatLogLineOddTrailingKeyMarkedMissing(t *testing.T) {
	line := formatLogLine("WARN", "odd_fields", []any{"only_key"})
	assert.Equal(t, "[WARN] odd_fields only_key=<missing>", line)
}

func TestStdLoggerBindPrependsFieldsWithoutMutatingParent(t *testing.T) {
	parent := NewStdLogger("[test] ").(*stdLogger)
	child := parent.Bind("component", "broker").(*stdLogger)

	assert.Empty(t, parent.fields)
	assert.Equal(t, []any{"component", "broker"}, child.fields)

	grandchild := child.Bind("conn", 1).(*stdLogger)
	assert.Equal(t, []any{"component", "broker", "conn", 1}, grandchild.fields)
	assert.Equal(t, []any{"component", "broker"}, child.fields)
}

func TestNopLoggerBindReturnsItself(t *testing.T) {
	var log Logger = NopLogger()
	bound := log.Bind("a", 1)
	assert.Equal(t, log, bound)
	assert.NotPanics(t, func() {
		bound.Debug("x")
		bound.Info("x")
		bound.Warn("x")
		bound.Error("x")
	})
}
