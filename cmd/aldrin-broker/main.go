// Aldrin Broker
//
// Standalone TCP server hosting the Aldrin message bus broker.
//
// Usage:
//
//	go run ./cmd/aldrin-broker                  # Default 127.0.0.1:8980
//	go run ./cmd/aldrin-broker -addr :8980      # Custom port
//	go build -o aldrin-broker ./cmd/aldrin-broker && ./aldrin-broker
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/aldrin-bus/aldrin/admin"
	"github.com/aldrin-bus/aldrin/broker"
	"github.com/aldrin-bus/aldrin/config"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/transport"
	"google.golang.org/grpc"
)

func main() {
	addr := flag.String("addr", "", "broker listen address (overrides config default)")
	adminAddr := flag.String("admin-addr", "", "BrokerAdminService gRPC listen address (empty disables it)")
	otlpEndpoint := flag.String("otlp-endpoint", "", "enable tracing and export spans here")
	flag.Parse()

	cfg := config.DefaultBrokerConfig()
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if *otlpEndpoint != "" {
		cfg.TracingEnabled = true
		cfg.OTLPEndpoint = *otlpEndpoint
	}

	logger := observability.NewStdLogger("[aldrin-broker] ")
	logger.Info("broker_starting", "address", cfg.ListenAddr)

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracer("aldrin-broker", cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("tracer_init_failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("listen_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("broker_listening", "address", ln.Addr().String())

	b := broker.New(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())

	go acceptLoop(ctx, ln, b, logger)
	go b.Run(ctx)

	var adminSrv *grpc.Server
	if cfg.AdminAddr != "" {
		srv, err := admin.Serve(cfg.AdminAddr, b, logger.Bind("component", "admin"))
		if err != nil {
			logger.Error("admin_listen_failed", "error", err)
		} else {
			adminSrv = srv
			logger.Info("admin_listening", "address", cfg.AdminAddr)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("\nAldrin broker running on %s\nPress Ctrl+C to stop\n", ln.Addr().String())

	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	cancel()
	ln.Close()
	if adminSrv != nil {
		adminSrv.GracefulStop()
	}
	b.Shutdown()
	logger.Info("broker_stopped")
}

func acceptLoop(ctx context.Context, ln net.Listener, b *broker.Broker, logger observability.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("accept_failed", "error", err)
			continue
		}
		t := transport.NewConn(conn)
		go func() {
			if err := b.Accept(ctx, t); err != nil {
				logger.Warn("handshake_failed", "remote", conn.RemoteAddr(), "error", err)
			}
		}()
	}
}
