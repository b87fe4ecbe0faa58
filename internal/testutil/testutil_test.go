package testutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/aldrin-bus/aldrin/internal/testutil"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/stretchr/testify/require"
)

func TestMockTransportQueueThenRecv(t *testing.T) {
	tr := testutil.NewMockTransport()
	tr.QueueRecv(wire.SyncClient{Serial: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := tr.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.SyncClient{Serial: 1}, msg)
}

func TestMockTransportRecvBlocksUntilQueued(t *testing.T) {
	tr := testutil.NewMockTransport()
	ctx := context.Background()

	result := make(chan wire.Message, 1)
	go func() {
		msg, _ := tr.Recv(ctx)
		result <- msg
	}()

	select {
	case <-result:
		t.Fatal("Recv returned before anything was queued")
	case <-time.After(20 * time.Millisecond):
	}

	tr.QueueRecv(wire.Shutdown{})
	require.Equal(t, wire.Shutdown{}, <-result)
}

func TestMockTransportSendRecordsMessages(t *testing.T) {
	tr := testutil.NewMockTransport()
	require.NoError(t, tr.Send(context.Background(), wire.SyncBroker{Serial: 3}))
	require.Equal(t, []wire.Message{wire.SyncBroker{Serial: 3}}, tr.SentMessages())
}

func TestMockTransportCloseFailsSubsequentOps(t *testing.T) {
	tr := testutil.NewMockTransport()
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := tr.Recv(context.Background())
	require.Error(t, err)
	require.Error(t, tr.Send(context.Background(), wire.Shutdown{}))
}

func TestMockLoggerCapturesEntriesAndBindPrependsFields(t *testing.T) {
	log := testutil.NewMockLogger()
	log.Info("started", "port", 8980)
	require.True(t, log.HasLog("info", "started"))

	bound := log.Bind("component", "broker")
	bound.Warn("slow_call", "ms", 120)

	logs := log.Logs()
	require.Len(t, logs, 2)
	require.Equal(t, "warn", logs[1].Level)
	require.Equal(t, []any{"component", "broker", "ms", 120}, logs[1].Fields)
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := testutil.NewMockClock(start)
	require.Equal(t, start, clock.Now())

	clock.Advance(5 * time.Minute)
	require.Equal(t, start.Add(5*time.Minute), clock.Now())
}
