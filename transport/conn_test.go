package transport_test

import (
	"context"
	"net"
	"testing"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/transport"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestConnTransportRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	server := transport.NewConn(serverConn)
	client := transport.NewConn(clientConn)
	ctx := context.Background()

	msg := wire.CreateObject{Serial: 1, UUID: bus.ObjectUUID(uuid.New())}
	done := make(chan error, 1)
	go func() { done <- client.Send(ctx, msg) }()

	got, err := server.Recv(ctx)
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Equal(t, msg, got)
}

func TestConnTransportCloseUnblocksRecv(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	server := transport.NewConn(serverConn)
	require.NoError(t, server.Close())

	_, err := server.Recv(context.Background())
	require.Error(t, err)
}
