package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/aldrin-bus/aldrin/transport"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/stretchr/testify/require"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := transport.NewPipe()
	ctx := context.Background()

	msg := wire.SyncClient{Serial: 7}
	done := make(chan error, 1)
	go func() { done <- a.Send(ctx, msg) }()

	got, err := b.Recv(ctx)
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Equal(t, msg, got)
}

func TestPipeCloseUnblocksBothSides(t *testing.T) {
	a, b := transport.NewPipe()
	ctx := context.Background()

	a.Close()

	_, err := a.Recv(ctx)
	require.Error(t, err)
	_, err = b.Recv(ctx)
	require.Error(t, err)
}

func TestPipeSendRespectsContextCancellation(t *testing.T) {
	a, _ := transport.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := a.Send(ctx, wire.Shutdown{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
