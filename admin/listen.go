package admin

import (
	"net"

	"github.com/aldrin-bus/aldrin/adminpb"
	"github.com/aldrin-bus/aldrin/broker"
	"github.com/aldrin-bus/aldrin/observability"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// Serve binds addr, starts BrokerAdminService on it in a background
// goroutine, and returns the *grpc.Server at once; the caller stops it
// with Stop or GracefulStop. Every RPC
// is wrapped in an OpenTelemetry span via otelgrpc's stats handler,
// exactly as the teacher wires tracing for EngineService.
func Serve(addr string, b *broker.Broker, log observability.Logger) (*grpc.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer(
		grpc.ForceServerCodec(adminpb.JSONCodec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	adminpb.RegisterBrokerAdminServiceServer(srv, NewServer(b, log))

	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Warn("admin_server_stopped", "error", err)
		}
	}()
	return srv, nil
}
